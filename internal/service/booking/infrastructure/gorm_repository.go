// internal/service/booking/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tourhub/internal/pkg/database"
	"tourhub/internal/service/booking/domain"
)

const orderViewColumns = "o.*, t.name AS tour_name, t.image AS tour_image, t.price AS tour_price, " +
	"u.name AS user_name, u.email AS user_email"

// GormBookingRepository 是 domain.Repository 的 GORM 实现
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository 创建一个新的 GORM 仓储实例
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// Transact 在数据库事务中执行 fn，死锁和锁等待超时被归类为冲突。
// 使用 READ COMMITTED：拿到线路行锁之后的聚合查询必须看到最新提交的订单
func (r *GormBookingRepository) Transact(ctx context.Context, fn func(tx domain.Tx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	return database.Classify(err)
}

func (r *GormBookingRepository) FindTour(ctx context.Context, tourID int64) (*domain.Tour, error) {
	return findTour(r.db.WithContext(ctx), tourID)
}

func (r *GormBookingRepository) FindOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return findOrder(r.db.WithContext(ctx), orderID)
}

func (r *GormBookingRepository) orderViews(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("orders AS o").
		Select(orderViewColumns).
		Joins("JOIN tours t ON t.id = o.tour_id").
		Joins("JOIN users u ON u.id = o.user_id").
		Order("o.created_at DESC, o.id DESC")
}

func (r *GormBookingRepository) FindOrdersByUser(ctx context.Context, userID int64) ([]domain.OrderView, error) {
	var rows []orderViewRow
	if err := r.orderViews(ctx).Where("o.user_id = ?", userID).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query user orders")
	}
	return toOrderViews(rows), nil
}

func (r *GormBookingRepository) FindAllOrders(ctx context.Context) ([]domain.OrderView, error) {
	var rows []orderViewRow
	if err := r.orderViews(ctx).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	return toOrderViews(rows), nil
}

func toOrderViews(rows []orderViewRow) []domain.OrderView {
	out := make([]domain.OrderView, len(rows))
	for i := range rows {
		out[i] = toDomainOrderView(&rows[i])
	}
	return out
}

func (r *GormBookingRepository) FindToursByGuide(ctx context.Context, guideID int64) ([]domain.Tour, error) {
	var models []TourSlotsModel
	err := r.db.WithContext(ctx).Where("guide_id = ?", guideID).Order("id").Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query guide tours")
	}
	out := make([]domain.Tour, len(models))
	for i := range models {
		out[i] = *ToDomainTour(&models[i])
	}
	return out, nil
}

func (r *GormBookingRepository) FindParticipants(ctx context.Context, tourID int64) ([]domain.Participant, error) {
	var rows []participantRow
	err := r.db.WithContext(ctx).
		Table("orders AS o").
		Select("u.id AS user_id, u.name AS user_name, u.email AS user_email, o.id AS order_id, " +
			"o.status, o.quantity, o.notes, t.price AS tour_price, o.created_at").
		Joins("JOIN users u ON u.id = o.user_id").
		Joins("JOIN tours t ON t.id = o.tour_id").
		Where("o.tour_id = ?", tourID).
		Order("CASE WHEN o.status = 'cancelled' THEN 1 ELSE 0 END, o.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query participants")
	}
	out := make([]domain.Participant, len(rows))
	for i := range rows {
		out[i] = toDomainParticipant(&rows[i])
	}
	return out, nil
}

func (r *GormBookingRepository) ReservedSlots(ctx context.Context, tourID int64) (int, error) {
	return reservedSlots(r.db.WithContext(ctx), tourID)
}

func findTour(db *gorm.DB, tourID int64) (*domain.Tour, error) {
	var m TourSlotsModel
	if err := db.First(&m, tourID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.TourNotFound(tourID)
		}
		return nil, errors.Wrapf(err, "load tour %d", tourID)
	}
	return ToDomainTour(&m), nil
}

func findOrder(db *gorm.DB, orderID int64) (*domain.Order, error) {
	var m OrderModel
	if err := db.First(&m, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.OrderNotFound(orderID)
		}
		return nil, errors.Wrapf(err, "load order %d", orderID)
	}
	return ToDomainOrder(&m), nil
}

func reservedSlots(db *gorm.DB, tourID int64) (int, error) {
	var total int64
	err := db.Model(&OrderModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("tour_id = ? AND status <> ?", tourID, string(domain.StatusCancelled)).
		Scan(&total).Error
	if err != nil {
		return 0, errors.Wrapf(err, "sum reserved slots of tour %d", tourID)
	}
	return int(total), nil
}

// gormTx 是事务内的 domain.Tx 实现
type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) forUpdate(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) LockTour(ctx context.Context, tourID int64) (*domain.Tour, error) {
	return findTour(t.forUpdate(ctx), tourID)
}

func (t *gormTx) LockOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return findOrder(t.forUpdate(ctx), orderID)
}

func (t *gormTx) ReservedSlots(ctx context.Context, tourID int64) (int, error) {
	return reservedSlots(t.db.WithContext(ctx), tourID)
}

func (t *gormTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	m := FromDomainOrder(order)
	if err := t.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "insert order")
	}
	order.ID = m.ID
	return nil
}

func (t *gormTx) UpdateOrderStatus(ctx context.Context, orderID int64, status domain.Status, at time.Time) error {
	err := t.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", orderID).
		Updates(map[string]any{"status": string(status), "updated_at": at}).Error
	return errors.Wrapf(err, "update status of order %d", orderID)
}

func (t *gormTx) SetAvailableSlots(ctx context.Context, tourID int64, available int) error {
	err := t.db.WithContext(ctx).Model(&TourSlotsModel{}).Where("id = ?", tourID).
		Update("available_slots", available).Error
	return errors.Wrapf(err, "update available slots of tour %d", tourID)
}

func (t *gormTx) SetCapacity(ctx context.Context, tourID int64, total, available int) error {
	err := t.db.WithContext(ctx).Model(&TourSlotsModel{}).Where("id = ?", tourID).
		Updates(map[string]any{"total_slots": total, "available_slots": available}).Error
	return errors.Wrapf(err, "update capacity of tour %d", tourID)
}

func (t *gormTx) CompleteOrders(ctx context.Context, userID, tourID int64, at time.Time) (int64, error) {
	active := []string{string(domain.StatusPending), string(domain.StatusConfirmed), string(domain.StatusUpcoming)}
	res := t.db.WithContext(ctx).Model(&OrderModel{}).
		Where("user_id = ? AND tour_id = ? AND status IN ?", userID, tourID, active).
		Updates(map[string]any{"status": string(domain.StatusCompleted), "updated_at": at})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "complete orders")
	}
	return res.RowsAffected, nil
}
