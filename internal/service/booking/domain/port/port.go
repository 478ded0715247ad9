// internal/service/booking/domain/port/port.go
package port

import (
	"context"

	"tourhub/internal/service/booking/domain"
)

// TourLocker 在数据库事务之外提供跨实例的按线路互斥。
// 调用方按线路 ID 升序传入，实现必须按同样顺序加锁
type TourLocker interface {
	LockTours(ctx context.Context, tourIDs []int64) (unlock func(), err error)
}

// EventPublisher 在事务提交后发布订单事件，失败不影响已提交的结果
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.OrderEvent) error
}

// TransitionInput 是状态迁移规则的输入
type TransitionInput struct {
	Role        string
	From        domain.Status
	To          domain.Status
	IsTourGuide bool
}

// TransitionPolicy 判断调用方是否可以执行一次状态迁移
type TransitionPolicy interface {
	Allow(ctx context.Context, in TransitionInput) (bool, error)
}
