// internal/service/booking/domain/repository.go
package domain

import (
	"context"
	"time"
)

// Repository 定义了预订模块的持久化接口，由基础设施层实现
type Repository interface {
	// Transact 在一个事务中执行 fn。fn 返回错误时整体回滚
	Transact(ctx context.Context, fn func(tx Tx) error) error

	FindTour(ctx context.Context, tourID int64) (*Tour, error)
	FindOrder(ctx context.Context, orderID int64) (*Order, error)
	FindOrdersByUser(ctx context.Context, userID int64) ([]OrderView, error)
	FindAllOrders(ctx context.Context) ([]OrderView, error)
	FindToursByGuide(ctx context.Context, guideID int64) ([]Tour, error)
	FindParticipants(ctx context.Context, tourID int64) ([]Participant, error)
	// ReservedSlots 返回未取消订单占用的名额总数
	ReservedSlots(ctx context.Context, tourID int64) (int, error)
}

// Tx 是事务内可用的操作。LockTour / LockOrder 对行加排他锁直到事务结束
type Tx interface {
	LockTour(ctx context.Context, tourID int64) (*Tour, error)
	LockOrder(ctx context.Context, orderID int64) (*Order, error)
	ReservedSlots(ctx context.Context, tourID int64) (int, error)
	InsertOrder(ctx context.Context, order *Order) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status Status, at time.Time) error
	SetAvailableSlots(ctx context.Context, tourID int64, available int) error
	SetCapacity(ctx context.Context, tourID int64, total, available int) error
	// CompleteOrders 把用户在该线路上的活跃订单标记为 completed，返回受影响行数
	CompleteOrders(ctx context.Context, userID, tourID int64, at time.Time) (int64, error)
}
