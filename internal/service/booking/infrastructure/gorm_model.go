// internal/service/booking/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// OrderModel 对应数据库中的 orders 表，预订模块拥有该表
type OrderModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	UserID     int64     `gorm:"not null;index"`
	TourID     int64     `gorm:"not null;index:idx_orders_tour_status"`
	Quantity   int       `gorm:"not null"`
	TotalPrice float64   `gorm:"type:decimal(10,2);not null"`
	Status     string    `gorm:"type:varchar(16);not null;default:pending;index:idx_orders_tour_status"`
	Notes      string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
}

func (OrderModel) TableName() string { return "orders" }

// TourSlotsModel 是 tours 表中预订模块读写的列。表结构由 catalog 模块维护
type TourSlotsModel struct {
	ID             int64 `gorm:"primaryKey"`
	Name           string
	Image          string
	GuideID        *int64
	TotalSlots     int
	AvailableSlots int
	Price          float64
}

func (TourSlotsModel) TableName() string { return "tours" }

// AutoMigrate 创建或升级 orders 表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OrderModel{})
}

// orderViewRow 是订单与线路、用户联表查询的结果行
type orderViewRow struct {
	OrderModel
	TourName  string
	TourImage string
	TourPrice float64
	UserName  string
	UserEmail string
}

// participantRow 是参与者查询的结果行
type participantRow struct {
	UserID    int64
	UserName  string
	UserEmail string
	OrderID   int64
	Status    string
	Quantity  int
	Notes     string
	TourPrice float64
	CreatedAt time.Time
}
