// internal/service/booking/domain/order.go
package domain

import (
	"math"
	"time"

	"tourhub/internal/pkg/apperr"
)

// LineItem 是一次下单中的一行
type LineItem struct {
	TourID    int64
	Quantity  int
	UnitPrice float64
}

// Validate 校验单行，index 用于在错误消息中定位
func (li LineItem) Validate(index int) error {
	switch {
	case li.TourID <= 0:
		return apperr.Validation("item %d: tour id is required", index)
	case li.Quantity <= 0:
		return apperr.Validation("item %d: quantity must be a positive integer", index)
	case li.UnitPrice <= 0 || math.IsNaN(li.UnitPrice) || math.IsInf(li.UnitPrice, 0):
		return apperr.Validation("item %d: price must be a positive number", index)
	}
	return nil
}

// ValidateItems 校验整批订单行
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return apperr.Validation("order must contain at least one item")
	}
	for i, item := range items {
		if err := item.Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// Order 是订单聚合根。Quantity 创建后不可变
type Order struct {
	ID         int64
	UserID     int64
	TourID     int64
	Quantity   int
	TotalPrice float64
	Status     Status
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewOrder 为一行创建 pending 订单
func NewOrder(userID int64, item LineItem, now time.Time) *Order {
	return &Order{
		UserID:     userID,
		TourID:     item.TourID,
		Quantity:   item.Quantity,
		TotalPrice: roundCents(item.UnitPrice * float64(item.Quantity)),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo 修改状态并返回对名额的影响
func (o *Order) TransitionTo(to Status, now time.Time) SlotEffect {
	effect := EffectOf(o.Status, to)
	o.Status = to
	o.UpdatedAt = now
	return effect
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
