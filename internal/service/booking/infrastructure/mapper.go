// internal/service/booking/infrastructure/mapper.go
package infrastructure

import "tourhub/internal/service/booking/domain"

// ToDomainTour 将数据库模型转换为领域模型
func ToDomainTour(m *TourSlotsModel) *domain.Tour {
	return &domain.Tour{
		ID:             m.ID,
		Name:           m.Name,
		Image:          m.Image,
		GuideID:        m.GuideID,
		TotalSlots:     m.TotalSlots,
		AvailableSlots: m.AvailableSlots,
		Price:          m.Price,
	}
}

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(m *OrderModel) *domain.Order {
	return &domain.Order{
		ID:         m.ID,
		UserID:     m.UserID,
		TourID:     m.TourID,
		Quantity:   m.Quantity,
		TotalPrice: m.TotalPrice,
		Status:     domain.Status(m.Status),
		Notes:      m.Notes,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromDomainOrder 将领域模型转换为数据库模型
func FromDomainOrder(o *domain.Order) *OrderModel {
	return &OrderModel{
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

func toDomainOrderView(r *orderViewRow) domain.OrderView {
	return domain.OrderView{
		Order:     *ToDomainOrder(&r.OrderModel),
		TourName:  r.TourName,
		TourImage: r.TourImage,
		TourPrice: r.TourPrice,
		UserName:  r.UserName,
		UserEmail: r.UserEmail,
	}
}

func toDomainParticipant(r *participantRow) domain.Participant {
	return domain.Participant{
		UserID:    r.UserID,
		UserName:  r.UserName,
		UserEmail: r.UserEmail,
		OrderID:   r.OrderID,
		Status:    domain.Status(r.Status),
		Quantity:  r.Quantity,
		Notes:     r.Notes,
		TourPrice: r.TourPrice,
		CreatedAt: r.CreatedAt,
	}
}
