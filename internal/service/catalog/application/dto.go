// internal/service/catalog/application/dto.go
package application

import (
	"time"

	"tourhub/internal/service/catalog/domain"
)

// TourInput 是新建或更新线路的表单字段。更新时 nil 字段保持不变
type TourInput struct {
	Name        *string
	Description *string
	Difficulty  *string
	Duration    *int
	Distance    *float64
	Price       *float64
	Location    *string
	GuideID     *int64
	TotalSlots  *int
}

// GuideResponse 是导游的对外表示
type GuideResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Position    string `json:"position,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description,omitempty"`
}

// TourResponse 是线路的对外表示
type TourResponse struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Difficulty     string         `json:"difficulty"`
	Duration       int            `json:"duration"`
	Distance       float64        `json:"distance"`
	Price          float64        `json:"price"`
	Location       string         `json:"location"`
	Image          string         `json:"image,omitempty"`
	GuideID        *int64         `json:"guide_id"`
	Guide          *GuideResponse `json:"guide,omitempty"`
	TotalSlots     int            `json:"total_slots"`
	AvailableSlots int            `json:"available_slots"`
	CreatedAt      time.Time      `json:"created_at"`
}

func toGuideResponse(g *domain.Guide) *GuideResponse {
	if g == nil {
		return nil
	}
	return &GuideResponse{ID: g.ID, Name: g.Name, Position: g.Position, Avatar: g.Avatar, Description: g.Description}
}

func toTourResponse(t *domain.Tour) *TourResponse {
	return &TourResponse{
		ID:             t.ID,
		Name:           t.Name,
		Description:    t.Description,
		Difficulty:     t.Difficulty,
		Duration:       t.Duration,
		Distance:       t.Distance,
		Price:          t.Price,
		Location:       t.Location,
		Image:          t.Image,
		GuideID:        t.GuideID,
		Guide:          toGuideResponse(t.Guide),
		TotalSlots:     t.TotalSlots,
		AvailableSlots: t.AvailableSlots,
		CreatedAt:      t.CreatedAt,
	}
}
