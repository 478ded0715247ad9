// internal/pkg/httpx/respond.go
package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/logger"
)

// WriteJSON 以 JSON 写出响应体
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError 把错误映射为状态码和 {"error": ...} 响应体，并按严重程度记录日志
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	l := logger.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", r.URL.Path).Msg("❌ request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Msg("request rejected")
	}

	body := map[string]any{"error": apperr.Message(err)}
	if details := apperr.Details(err); details != nil {
		body["details"] = details
	}
	WriteJSON(w, status, body)
}

// MaxJSONBody 是 JSON 请求体的上限
const MaxJSONBody int64 = 1 << 20

// DecodeJSON 解析请求体，超限或格式错误统一视为校验错误
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.Validation("request body is required")
	}
	body := http.MaxBytesReader(nil, r.Body, MaxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("request body exceeds %d bytes", MaxJSONBody)
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}

// PathID 读取路由中的正整数 ID 参数
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s: %q", name, raw)
	}
	return id, nil
}
