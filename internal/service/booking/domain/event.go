// internal/service/booking/domain/event.go
package domain

import "time"

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent 是订单提交后对外发布的事件
type OrderEvent struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	OrderID    int64     `json:"orderId"`
	UserID     int64     `json:"userId"`
	TourID     int64     `json:"tourId"`
	Quantity   int       `json:"quantity"`
	From       Status    `json:"from,omitempty"`
	Status     Status    `json:"status"`
	TraceID    string    `json:"traceId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
