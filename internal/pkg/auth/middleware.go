// internal/pkg/auth/middleware.go
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/httpx"
	"tourhub/internal/pkg/logger"
)

// PrincipalLoader 按用户 ID 重新加载调用方，使角色变更立即生效
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (Principal, error)
}

// PrincipalLoaderFunc 让普通函数实现 PrincipalLoader
type PrincipalLoaderFunc func(ctx context.Context, userID int64) (Principal, error)

func (f PrincipalLoaderFunc) LoadPrincipal(ctx context.Context, userID int64) (Principal, error) {
	return f(ctx, userID)
}

// Middleware 负责从 Bearer 令牌中识别调用方
type Middleware struct {
	tokens *TokenManager
	loader PrincipalLoader
}

// NewMiddleware 创建认证中间件。loader 为 nil 时直接信任令牌中的角色
func NewMiddleware(tokens *TokenManager, loader PrincipalLoader) *Middleware {
	return &Middleware{tokens: tokens, loader: loader}
}

// Resolve 校验令牌并加载当前的调用方
func (m *Middleware) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, apperr.Unauthorized("access token is required")
	}
	p, err := m.tokens.Verify(token)
	if err != nil {
		return Principal{}, err
	}
	if m.loader == nil {
		return p, nil
	}
	current, err := m.loader.LoadPrincipal(ctx, p.UserID)
	if err != nil {
		if apperr.Status(err) == http.StatusNotFound {
			return Principal{}, apperr.Unauthorized("user no longer exists")
		}
		return Principal{}, err
	}
	return current, nil
}

// Authenticate 要求请求携带有效令牌
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.Resolve(r.Context(), BearerToken(r))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		ctx := WithPrincipal(r.Context(), p)
		ctx = logger.With(ctx, func(c zerolog.Context) zerolog.Context {
			return c.Int64("user_id", p.UserID)
		})
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int64("user.id", p.UserID),
			attribute.String("user.role", string(p.Role)),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require 要求调用方具备某项权限，必须挂在 Authenticate 之后
func Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				httpx.WriteError(w, r, apperr.Unauthorized("access token is required"))
				return
			}
			if !p.Can(c) {
				httpx.WriteError(w, r, apperr.Forbidden("role %s lacks permission %s", p.Role, c))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken 读取 Authorization: Bearer 头
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
