// internal/service/identity/infrastructure/mapper.go
package infrastructure

import (
	"tourhub/internal/pkg/auth"
	"tourhub/internal/service/identity/domain"
)

// ToDomainUser 将数据库模型转换为领域模型
func ToDomainUser(m *UserModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.Password,
		Role:         auth.Role(m.Role),
		Avatar:       m.Avatar,
		Position:     m.Position,
		Description:  m.Description,
		CreatedAt:    m.CreatedAt,
	}
}

// FromDomainUser 将领域模型转换为数据库模型
func FromDomainUser(u *domain.User) *UserModel {
	return &UserModel{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Password:    u.PasswordHash,
		Role:        string(u.Role),
		Avatar:      u.Avatar,
		Position:    u.Position,
		Description: u.Description,
	}
}

func patchColumns(p domain.UserPatch) map[string]any {
	cols := map[string]any{}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Email != nil {
		cols["email"] = *p.Email
	}
	if p.PasswordHash != nil {
		cols["password"] = *p.PasswordHash
	}
	if p.Role != nil {
		cols["role"] = string(*p.Role)
	}
	if p.Avatar != nil {
		cols["avatar"] = *p.Avatar
	}
	if p.Position != nil {
		cols["position"] = *p.Position
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	return cols
}
