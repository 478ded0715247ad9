// internal/service/booking/domain/tour.go
package domain

// Tour 是预订模块看到的旅游线路，只关心名额与价格
type Tour struct {
	ID             int64
	Name           string
	Image          string
	GuideID        *int64
	TotalSlots     int
	AvailableSlots int
	Price          float64
}

// Remaining 返回已占用 reserved 个名额时的剩余名额，可能为负
func (t *Tour) Remaining(reserved int) int {
	return t.TotalSlots - reserved
}

// CheckCapacity 校验在已占用 reserved 的情况下还能否再占用 requested 个名额
func (t *Tour) CheckCapacity(reserved, requested int) error {
	remaining := t.Remaining(reserved)
	if remaining >= requested {
		return nil
	}
	if remaining < 0 {
		remaining = 0
	}
	return &CapacityError{
		TourID:    t.ID,
		TourName:  t.Name,
		Remaining: remaining,
		Requested: requested,
	}
}

// AvailableAfter 由占用量推导出缓存的可用名额，结果截断在 [0, TotalSlots]
func (t *Tour) AvailableAfter(reserved int) int {
	available := t.TotalSlots - reserved
	if available < 0 {
		return 0
	}
	if available > t.TotalSlots {
		return t.TotalSlots
	}
	return available
}

// IsGuidedBy 报告 userID 是否为该线路的导游
func (t *Tour) IsGuidedBy(userID int64) bool {
	return t.GuideID != nil && *t.GuideID == userID
}
