// internal/service/booking/domain/errors.go
package domain

import (
	"fmt"

	"tourhub/internal/pkg/apperr"
)

// CapacityError 表示线路剩余名额不足，归类为 apperr.ErrInsufficientCapacity
type CapacityError struct {
	TourID    int64
	TourName  string
	Remaining int
	Requested int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough available slots for tour %q: %d remaining, %d requested",
		e.TourName, e.Remaining, e.Requested)
}

func (e *CapacityError) Unwrap() error { return apperr.ErrInsufficientCapacity }

func (e *CapacityError) PublicMessage() string { return e.Error() }

func (e *CapacityError) Details() map[string]any {
	return map[string]any{
		"tour_id":   e.TourID,
		"tour_name": e.TourName,
		"remaining": e.Remaining,
		"requested": e.Requested,
	}
}

func TourNotFound(id int64) error {
	return apperr.NotFound("tour with id %d not found", id)
}

func OrderNotFound(id int64) error {
	return apperr.NotFound("order with id %d not found", id)
}
