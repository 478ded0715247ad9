// internal/service/catalog/domain/tour.go
package domain

import (
	"context"
	"strings"
	"time"

	"tourhub/internal/pkg/apperr"
)

// Guide 是线路详情中嵌入的导游信息
type Guide struct {
	ID          int64
	Name        string
	Position    string
	Avatar      string
	Description string
}

// Tour 是线路目录中的完整线路
type Tour struct {
	ID             int64
	Name           string
	Description    string
	Difficulty     string
	Duration       int
	Distance       float64
	Price          float64
	Location       string
	Image          string
	GuideID        *int64
	Guide          *Guide
	TotalSlots     int
	AvailableSlots int
	CreatedAt      time.Time
}

// Validate 校验新建线路的必填字段
func (t *Tour) Validate() error {
	switch {
	case strings.TrimSpace(t.Name) == "":
		return apperr.Validation("name is required")
	case t.Price < 0:
		return apperr.Validation("price must not be negative")
	case t.TotalSlots <= 0:
		return apperr.Validation("total_slots must be a positive integer")
	case t.Duration < 0:
		return apperr.Validation("duration must not be negative")
	case t.Distance < 0:
		return apperr.Validation("distance must not be negative")
	}
	return nil
}

// Filter 是线路列表的查询条件，零值字段不参与过滤
type Filter struct {
	Difficulty string
	Location   string
	MinPrice   *float64
	MaxPrice   *float64
	Duration   *int
}

// TourPatch 是部分更新。nil 字段保持不变。
// TotalSlots 不在这里：容量变更必须经过预订模块
type TourPatch struct {
	Name        *string
	Description *string
	Difficulty  *string
	Duration    *int
	Distance    *float64
	Price       *float64
	Location    *string
	Image       *string
	GuideID     *int64
}

// Empty 报告补丁是否没有任何字段
func (p *TourPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Difficulty == nil && p.Duration == nil &&
		p.Distance == nil && p.Price == nil && p.Location == nil && p.Image == nil && p.GuideID == nil
}

// Validate 校验补丁中出现的字段
func (p *TourPatch) Validate() error {
	switch {
	case p.Name != nil && strings.TrimSpace(*p.Name) == "":
		return apperr.Validation("name must not be empty")
	case p.Price != nil && *p.Price < 0:
		return apperr.Validation("price must not be negative")
	case p.Duration != nil && *p.Duration < 0:
		return apperr.Validation("duration must not be negative")
	case p.Distance != nil && *p.Distance < 0:
		return apperr.Validation("distance must not be negative")
	}
	return nil
}

func TourNotFound(id int64) error {
	return apperr.NotFound("tour with id %d not found", id)
}

// TourRepository 定义了线路目录的持久化接口
type TourRepository interface {
	List(ctx context.Context, f Filter) ([]Tour, error)
	FindByID(ctx context.Context, id int64) (*Tour, error)
	Create(ctx context.Context, t *Tour) error
	Update(ctx context.Context, id int64, patch TourPatch) error
	// Delete 删除线路。线路仍有活跃订单时返回冲突错误
	Delete(ctx context.Context, id int64) error
	ListGuides(ctx context.Context) ([]Guide, error)
	IsGuide(ctx context.Context, userID int64) (bool, error)
}
