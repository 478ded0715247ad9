// internal/service/catalog/infrastructure/mapper.go
package infrastructure

import "tourhub/internal/service/catalog/domain"

// ToDomainTour 将联表查询结果转换为领域模型
func ToDomainTour(r *tourRow) *domain.Tour {
	t := &domain.Tour{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Difficulty:     r.Difficulty,
		Duration:       r.Duration,
		Distance:       r.Distance,
		Price:          r.Price,
		Location:       r.Location,
		Image:          r.Image,
		GuideID:        r.GuideID,
		TotalSlots:     r.TotalSlots,
		AvailableSlots: r.AvailableSlots,
		CreatedAt:      r.CreatedAt,
	}
	if r.GuideID != nil && r.GuideName.Valid {
		t.Guide = &domain.Guide{
			ID:          *r.GuideID,
			Name:        r.GuideName.String,
			Position:    r.GuidePosition.String,
			Avatar:      r.GuideAvatar.String,
			Description: r.GuideDescription.String,
		}
	}
	return t
}

// FromDomainTour 将领域模型转换为数据库模型
func FromDomainTour(t *domain.Tour) *TourModel {
	return &TourModel{
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
		TotalSlots:     t.TotalSlots,
		AvailableSlots: t.AvailableSlots,
	}
}

func toDomainGuide(r *guideRow) domain.Guide {
	return domain.Guide{
		ID:          r.ID,
		Name:        r.Name,
		Position:    r.Position.String,
		Avatar:      r.Avatar.String,
		Description: r.Description.String,
	}
}

// patchColumns 把补丁转换为需要更新的列
func patchColumns(p domain.TourPatch) map[string]any {
	cols := map[string]any{}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Difficulty != nil {
		cols["difficulty"] = *p.Difficulty
	}
	if p.Duration != nil {
		cols["duration"] = *p.Duration
	}
	if p.Distance != nil {
		cols["distance"] = *p.Distance
	}
	if p.Price != nil {
		cols["price"] = *p.Price
	}
	if p.Location != nil {
		cols["location"] = *p.Location
	}
	if p.Image != nil {
		cols["image"] = *p.Image
	}
	if p.GuideID != nil {
		cols["guide_id"] = *p.GuideID
	}
	return cols
}
