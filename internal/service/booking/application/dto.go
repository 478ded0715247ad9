// internal/service/booking/application/dto.go
package application

import (
	"time"

	"tourhub/internal/service/booking/domain"
)

// OrderItemRequest 是下单请求中的一行
type OrderItemRequest struct {
	TourID   int64   `json:"id"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// PlaceOrderRequest 是下单请求
type PlaceOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

func (r *PlaceOrderRequest) lineItems() []domain.LineItem {
	items := make([]domain.LineItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = domain.LineItem{TourID: it.TourID, Quantity: it.Quantity, UnitPrice: it.Price}
	}
	return items
}

// PlaceOrderResponse 是下单结果
type PlaceOrderResponse struct {
	Message    string  `json:"message"`
	OrderIDs   []int64 `json:"order_ids"`
	TotalPrice float64 `json:"total_price"`
}

// UpdateStatusRequest 是状态变更请求
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// OrderResponse 是订单的对外表示
type OrderResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	TourID     int64     `json:"tour_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	TourName  string  `json:"tour_name,omitempty"`
	TourImage string  `json:"tour_image,omitempty"`
	TourPrice float64 `json:"tour_price,omitempty"`
	UserName  string  `json:"user_name,omitempty"`
	UserEmail string  `json:"user_email,omitempty"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		TourID:     o.TourID,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Status:     string(o.Status),
		Notes:      o.Notes,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func toOrderResponses(views []domain.OrderView) []OrderResponse {
	out := make([]OrderResponse, len(views))
	for i := range views {
		v := &views[i]
		resp := toOrderResponse(&v.Order)
		resp.TourName = v.TourName
		resp.TourImage = v.TourImage
		resp.TourPrice = v.TourPrice
		resp.UserName = v.UserName
		resp.UserEmail = v.UserEmail
		out[i] = resp
	}
	return out
}

// ParticipantResponse 是线路参与者
type ParticipantResponse struct {
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	Quantity  int       `json:"quantity"`
	Notes     string    `json:"notes,omitempty"`
	TourPrice float64   `json:"tour_price"`
	CreatedAt time.Time `json:"created_at"`
}

func toParticipantResponses(ps []domain.Participant) []ParticipantResponse {
	out := make([]ParticipantResponse, len(ps))
	for i, p := range ps {
		out[i] = ParticipantResponse{
			UserID:    p.UserID,
			UserName:  p.UserName,
			UserEmail: p.UserEmail,
			OrderID:   p.OrderID,
			Status:    string(p.Status),
			Quantity:  p.Quantity,
			Notes:     p.Notes,
			TourPrice: p.TourPrice,
			CreatedAt: p.CreatedAt,
		}
	}
	return out
}

// GuideTourResponse 是导游视角下的一条线路
type GuideTourResponse struct {
	ID                int64                 `json:"id"`
	Name              string                `json:"name"`
	Image             string                `json:"image,omitempty"`
	Price             float64               `json:"price"`
	TotalSlots        int                   `json:"total_slots"`
	AvailableSlots    int                   `json:"available_slots"`
	Participants      []ParticipantResponse `json:"participants"`
	TotalOrderedSlots int                   `json:"total_ordered_slots"`
	IsFull            bool                  `json:"is_full"`
}

// TourOrderCountResponse 是线路已占用名额
type TourOrderCountResponse struct {
	TotalOrders int `json:"total_orders"`
}

// CompleteUserTourResponse 是批量完成的结果
type CompleteUserTourResponse struct {
	Message       string `json:"message"`
	UpdatedOrders int64  `json:"updated_orders"`
}
