// internal/pkg/auth/principal.go
package auth

import "context"

// Principal 是已认证的调用方
type Principal struct {
	UserID int64
	Email  string
	Role   Role
}

func (p Principal) Can(c Capability) bool { return p.Role.Can(c) }

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type principalKey struct{}

// WithPrincipal 把调用方放入 ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext 取出调用方
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
