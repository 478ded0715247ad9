// internal/service/identity/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/auth"
	"tourhub/internal/pkg/database"
	"tourhub/internal/service/identity/domain"
)

// GormUserRepository 是 domain.UserRepository 的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建一个新的 GORM 仓储实例
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, u *domain.User) error {
	m := FromDomainUser(u)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return database.Classify(err)
	}
	u.ID = m.ID
	u.CreatedAt = m.CreatedAt
	return nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.UserNotFound(id)
		}
		return nil, errors.Wrapf(err, "load user %d", id)
	}
	return ToDomainUser(&m), nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m UserModel
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user by email")
	}
	return ToDomainUser(&m), nil
}

func (r *GormUserRepository) Update(ctx context.Context, id int64, patch domain.UserPatch) error {
	if patch.Empty() {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).Updates(patchColumns(patch))
	if res.Error != nil {
		return database.Classify(res.Error)
	}
	return nil
}

// List 返回全部用户，最新注册的在前
func (r *GormUserRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.find(ctx, r.db.WithContext(ctx).Order("created_at DESC, id DESC"))
}

func (r *GormUserRepository) ListByRole(ctx context.Context, role auth.Role) ([]domain.User, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("role = ?", string(role)).Order("name"))
}

func (r *GormUserRepository) find(_ context.Context, q *gorm.DB) ([]domain.User, error) {
	var models []UserModel
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	out := make([]domain.User, len(models))
	for i := range models {
		out[i] = *ToDomainUser(&models[i])
	}
	return out, nil
}

// Delete 删除用户及其已取消的订单，并解除其导游身份。仍有活跃订单时拒绝删除，
// 否则被释放的名额不会反映到线路的可用名额上
func (r *GormUserRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m UserModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.UserNotFound(id)
			}
			return err
		}
		var active int64
		if err := tx.Table("orders").Where("user_id = ? AND status <> ?", id, "cancelled").Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return apperr.Conflict("user %d still has %d active orders", id, active)
		}
		if err := tx.Exec("DELETE FROM orders WHERE user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Table("tours").Where("guide_id = ?", id).Update("guide_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, id).Error
	})
	return database.Classify(err)
}
