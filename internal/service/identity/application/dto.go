// internal/service/identity/application/dto.go
package application

import (
	"time"

	"tourhub/internal/service/identity/domain"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileRequest 是个人资料的更新请求。position 和 description 只对导游生效
type ProfileRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Position        *string `json:"position"`
	Description     *string `json:"description"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

type RoleRequest struct {
	Role string `json:"role"`
}

// UserResponse 是用户的对外表示，不包含密码哈希
type UserResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Role        string    `json:"role"`
	Avatar      string    `json:"avatar,omitempty"`
	Position    string    `json:"position,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// GuideResponse 是公开的导游名片
type GuideResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Position    string `json:"position,omitempty"`
	Description string `json:"description,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        string(u.Role),
		Avatar:      u.Avatar,
		Position:    u.Position,
		Description: u.Description,
		CreatedAt:   u.CreatedAt,
	}
}
