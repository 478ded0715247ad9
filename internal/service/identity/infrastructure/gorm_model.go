// internal/service/identity/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// UserModel 对应数据库中的 users 表
type UserModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"type:varchar(255);not null"`
	Email       string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Password    string `gorm:"type:varchar(255);not null"`
	Role        string `gorm:"type:varchar(16);not null;default:user;index"`
	Avatar      string `gorm:"type:varchar(512)"`
	Position    string `gorm:"type:varchar(255)"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 指定 GORM 应该使用的表名
func (UserModel) TableName() string { return "users" }

// AutoMigrate 创建或升级 users 表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}
