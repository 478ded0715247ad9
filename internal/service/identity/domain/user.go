// internal/service/identity/domain/user.go
package domain

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/auth"
)

// MinPasswordLength 是新密码的最小长度
const MinPasswordLength = 6

// User 是系统中的账户
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         auth.Role
	Avatar       string
	Position     string
	Description  string
	CreatedAt    time.Time
}

// Principal 返回该用户作为调用方的身份
func (u *User) Principal() auth.Principal {
	return auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// UserPatch 是用户的部分更新，nil 字段保持不变
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *auth.Role
	Avatar       *string
	Position     *string
	Description  *string
}

func (p *UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.PasswordHash == nil && p.Role == nil &&
		p.Avatar == nil && p.Position == nil && p.Description == nil
}

// NormalizeEmail 统一邮箱大小写并校验格式
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Validation("invalid email %q", raw)
	}
	return email, nil
}

// ValidatePassword 校验新密码
func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func UserNotFound(id int64) error {
	return apperr.NotFound("user with id %d not found", id)
}

// UserRepository 定义了账户的持久化接口
type UserRepository interface {
	// Create 插入用户并回填 ID，邮箱重复时返回冲突错误
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	// FindByEmail 在用户不存在时返回 (nil, nil)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id int64, patch UserPatch) error
	List(ctx context.Context) ([]User, error)
	ListByRole(ctx context.Context, role auth.Role) ([]User, error)
	// Delete 删除用户。用户仍有活跃订单时返回冲突错误
	Delete(ctx context.Context, id int64) error
}
