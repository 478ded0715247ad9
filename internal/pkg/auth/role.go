// internal/pkg/auth/role.go
package auth

import (
	"strings"

	"tourhub/internal/pkg/apperr"
)

// Role 是封闭的角色集合，不接受集合之外的值
type Role string

const (
	RoleUser  Role = "user"
	RoleGuide Role = "guide"
	RoleAdmin Role = "admin"
)

// ParseRole 解析角色字符串，未知角色返回校验错误
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleGuide, RoleAdmin:
		return r, nil
	}
	return "", apperr.Validation("invalid role %q, must be one of user, guide, admin", s)
}

// Capability 是 HTTP 边界上检查的一项权限
type Capability int

const (
	CapPlaceOrder Capability = iota + 1
	CapViewOwnOrders
	// CapManageOrders 允许修改订单状态，具体迁移仍受迁移规则约束
	CapManageOrders
	// CapAdministerOrders 查看全部订单、批量完成用户行程
	CapAdministerOrders
	CapViewGuideTours
	CapEditGuideProfile
	CapManageTours
	CapManageUsers
)

var capabilityNames = map[Capability]string{
	CapPlaceOrder:       "place_order",
	CapViewOwnOrders:    "view_own_orders",
	CapManageOrders:     "manage_orders",
	CapAdministerOrders: "administer_orders",
	CapViewGuideTours:   "view_guide_tours",
	CapEditGuideProfile: "edit_guide_profile",
	CapManageTours:      "manage_tours",
	CapManageUsers:      "manage_users",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "unknown"
}

// Can 报告该角色是否具备某项权限
func (r Role) Can(c Capability) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleGuide:
		switch c {
		case CapPlaceOrder, CapViewOwnOrders, CapManageOrders, CapViewGuideTours, CapEditGuideProfile:
			return true
		}
	case RoleUser:
		switch c {
		case CapPlaceOrder, CapViewOwnOrders:
			return true
		}
	}
	return false
}
