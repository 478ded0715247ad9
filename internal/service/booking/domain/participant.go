// internal/service/booking/domain/participant.go
package domain

import (
	"sort"
	"time"
)

// Participant 是某条线路的一笔订单及其下单人
type Participant struct {
	UserID    int64
	UserName  string
	UserEmail string
	OrderID   int64
	Status    Status
	Quantity  int
	Notes     string
	TourPrice float64
	CreatedAt time.Time
}

// SortParticipants 未取消的排在前面，同组内按下单时间倒序
func SortParticipants(ps []Participant) {
	sort.SliceStable(ps, func(i, j int) bool {
		ci, cj := ps[i].Status == StatusCancelled, ps[j].Status == StatusCancelled
		if ci != cj {
			return !ci
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}

// ReservedBy 汇总未取消订单占用的名额
func ReservedBy(ps []Participant) int {
	total := 0
	for _, p := range ps {
		if p.Status.Active() {
			total += p.Quantity
		}
	}
	return total
}

// OrderView 是带有线路与用户信息的订单列表项
type OrderView struct {
	Order
	TourName  string
	TourImage string
	TourPrice float64
	UserName  string
	UserEmail string
}
