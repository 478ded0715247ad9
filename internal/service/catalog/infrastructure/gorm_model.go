// internal/service/catalog/infrastructure/gorm_model.go
package infrastructure

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// TourModel 对应数据库中的 tours 表
type TourModel struct {
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	Name           string  `gorm:"type:varchar(255);not null"`
	Description    string  `gorm:"type:text"`
	Difficulty     string  `gorm:"type:varchar(32);index"`
	Duration       int     `gorm:"not null;default:0"`
	Distance       float64 `gorm:"type:decimal(10,2);not null;default:0"`
	Price          float64 `gorm:"type:decimal(10,2);not null"`
	Location       string  `gorm:"type:varchar(255)"`
	Image          string  `gorm:"type:varchar(512)"`
	GuideID        *int64  `gorm:"index"`
	TotalSlots     int     `gorm:"not null"`
	AvailableSlots int     `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName 指定 GORM 应该使用的表名
func (TourModel) TableName() string { return "tours" }

// AutoMigrate 创建或升级 tours 表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TourModel{})
}

// tourRow 是线路与导游联表查询的结果行
type tourRow struct {
	TourModel
	GuideName        sql.NullString
	GuidePosition    sql.NullString
	GuideAvatar      sql.NullString
	GuideDescription sql.NullString
}

// guideRow 是 users 表中导游相关的列
type guideRow struct {
	ID          int64
	Name        string
	Position    sql.NullString
	Avatar      sql.NullString
	Description sql.NullString
}
