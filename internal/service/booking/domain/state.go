// internal/service/booking/domain/state.go
package domain

import (
	"strings"

	"tourhub/internal/pkg/apperr"
)

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending   Status = "pending"   // 已下单，占用名额
	StatusConfirmed Status = "confirmed" // 已确认，占用名额
	StatusUpcoming  Status = "upcoming"  // 即将出行，占用名额
	StatusCompleted Status = "completed" // 已完成，名额仍计入
	StatusCancelled Status = "cancelled" // 已取消，释放名额
)

// ParseStatus 解析状态字符串，未知状态返回校验错误
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusUpcoming, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", apperr.Validation("invalid order status %q", s)
}

// Active 报告该状态的订单是否占用名额。只有 cancelled 不占用
func (s Status) Active() bool {
	return s != StatusCancelled
}

// SlotEffect 描述一次状态迁移对名额的影响
type SlotEffect int

const (
	SlotUnchanged SlotEffect = iota
	SlotRelease              // 活跃 -> cancelled
	SlotReserve              // cancelled -> 活跃
)

// EffectOf 计算从 from 迁移到 to 对名额的影响
func EffectOf(from, to Status) SlotEffect {
	switch {
	case from.Active() && !to.Active():
		return SlotRelease
	case !from.Active() && to.Active():
		return SlotReserve
	default:
		return SlotUnchanged
	}
}

// ReactivationPolicy 决定把已取消订单恢复为活跃状态时是否重新检查名额
type ReactivationPolicy string

const (
	// ReactivationStrict 重新检查剩余名额，不足则拒绝
	ReactivationStrict ReactivationPolicy = "strict"
	// ReactivationTrustedAdmin 信任操作人，直接占用名额，可用名额在 0 处截断
	ReactivationTrustedAdmin ReactivationPolicy = "trusted-admin"
)

// ParseReactivationPolicy 解析配置值，空串视为 strict
func ParseReactivationPolicy(s string) (ReactivationPolicy, error) {
	switch p := ReactivationPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ReactivationStrict, nil
	case ReactivationStrict, ReactivationTrustedAdmin:
		return p, nil
	}
	return "", apperr.Validation("invalid reactivation policy %q, must be strict or trusted-admin", s)
}
