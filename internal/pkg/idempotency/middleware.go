// internal/pkg/idempotency/middleware.go
package idempotency

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/httpx"
	"tourhub/internal/pkg/logger"
)

// HeaderKey 是客户端传递幂等键的请求头
const HeaderKey = "Idempotency-Key"

// Middleware 拒绝重复的幂等键。请求失败（>= 400）时释放键以便重试。
// Redis 不可用时放行请求，幂等只是尽力而为。
func Middleware(store *Store, scope func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderKey)
			if store == nil || raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(raw) > 128 {
				httpx.WriteError(w, r, apperr.Validation("%s must be at most 128 characters", HeaderKey))
				return
			}

			ctx := r.Context()
			key := store.Key(scope(r), raw)
			seen, err := store.Seen(ctx, key)
			if err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("⚠️ idempotency store unavailable, continuing without it")
				next.ServeHTTP(w, r)
				return
			}
			if seen {
				httpx.WriteError(w, r, apperr.Conflict("duplicate request: %s %q was already used", HeaderKey, raw))
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() >= http.StatusBadRequest {
				if err := store.Forget(ctx, key); err != nil {
					logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
				}
			}
		})
	}
}
