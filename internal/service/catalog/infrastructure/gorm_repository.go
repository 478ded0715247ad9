// internal/service/catalog/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/database"
	"tourhub/internal/service/catalog/domain"
)

const tourColumns = "t.*, u.name AS guide_name, u.position AS guide_position, " +
	"u.avatar AS guide_avatar, u.description AS guide_description"

// GormTourRepository 是 domain.TourRepository 的 GORM 实现
type GormTourRepository struct {
	db *gorm.DB
}

// NewGormTourRepository 创建一个新的 GORM 仓储实例
func NewGormTourRepository(db *gorm.DB) *GormTourRepository {
	return &GormTourRepository{db: db}
}

func (r *GormTourRepository) tours(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("tours AS t").
		Select(tourColumns).
		Joins("LEFT JOIN users u ON u.id = t.guide_id")
}

// List 按条件查询线路
func (r *GormTourRepository) List(ctx context.Context, f domain.Filter) ([]domain.Tour, error) {
	q := r.tours(ctx)
	if f.Difficulty != "" {
		q = q.Where("t.difficulty = ?", f.Difficulty)
	}
	if f.Location != "" {
		q = q.Where("t.location LIKE ?", "%"+f.Location+"%")
	}
	if f.MinPrice != nil {
		q = q.Where("t.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("t.price <= ?", *f.MaxPrice)
	}
	if f.Duration != nil {
		q = q.Where("t.duration = ?", *f.Duration)
	}

	var rows []tourRow
	if err := q.Order("t.created_at DESC, t.id DESC").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query tours")
	}
	out := make([]domain.Tour, len(rows))
	for i := range rows {
		out[i] = *ToDomainTour(&rows[i])
	}
	return out, nil
}

// FindByID 查询单条线路
func (r *GormTourRepository) FindByID(ctx context.Context, id int64) (*domain.Tour, error) {
	var rows []tourRow
	if err := r.tours(ctx).Where("t.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "load tour %d", id)
	}
	if len(rows) == 0 {
		return nil, domain.TourNotFound(id)
	}
	return ToDomainTour(&rows[0]), nil
}

// Create 插入线路并回填 ID
func (r *GormTourRepository) Create(ctx context.Context, t *domain.Tour) error {
	m := FromDomainTour(t)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return database.Classify(err)
	}
	t.ID = m.ID
	t.CreatedAt = m.CreatedAt
	return nil
}

// Update 只更新补丁中出现的列，名额列不会被修改
func (r *GormTourRepository) Update(ctx context.Context, id int64, patch domain.TourPatch) error {
	res := r.db.WithContext(ctx).Model(&TourModel{}).Where("id = ?", id).Updates(patchColumns(patch))
	if res.Error != nil {
		return database.Classify(res.Error)
	}
	return nil
}

// Delete 在同一事务中锁定线路并确认没有活跃订单后删除
func (r *GormTourRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m TourModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.TourNotFound(id)
			}
			return err
		}
		var active int64
		err := tx.Table("orders").Where("tour_id = ? AND status <> ?", id, "cancelled").Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return apperr.Conflict("tour %d still has %d active orders", id, active)
		}
		if err := tx.Exec("DELETE FROM orders WHERE tour_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&TourModel{}, id).Error
	})
	return database.Classify(err)
}

// ListGuides 查询所有导游
func (r *GormTourRepository) ListGuides(ctx context.Context) ([]domain.Guide, error) {
	var rows []guideRow
	err := r.db.WithContext(ctx).Table("users").
		Select("id, name, position, avatar, description").
		Where("role = ?", "guide").
		Order("name").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query guides")
	}
	out := make([]domain.Guide, len(rows))
	for i := range rows {
		out[i] = toDomainGuide(&rows[i])
	}
	return out, nil
}

// IsGuide 判断用户是否为导游
func (r *GormTourRepository) IsGuide(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Table("users").Where("id = ? AND role = ?", userID, "guide").Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "check guide")
	}
	return n > 0, nil
}
