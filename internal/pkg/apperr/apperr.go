// Package apperr 定义了跨模块共享的错误分类，以及它们到 HTTP 状态码的映射
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// 错误分类哨兵。具体错误通过 Unwrap 归入其中之一
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrUnauthorized         = errors.New("unauthorized")
)

// Error 是带分类和面向调用方消息的错误
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap 同时暴露分类和底层原因，errors.Is / errors.As 都能命中
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// PublicMessage 返回可以安全返回给客户端的消息，不包含底层原因
func (e *Error) PublicMessage() string { return e.Message }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return newError(ErrUnauthorized, format, args...)
}

// Wrap 给底层错误加上分类，消息对外可见，原因只进日志
func Wrap(kind, cause error, message string) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Status 把错误映射为 HTTP 状态码，无法分类的错误一律为 500
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientCapacity), errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type publicError interface {
	error
	PublicMessage() string
}

type detailedError interface {
	error
	Details() map[string]any
}

// Message 返回错误对外的描述。500 永远是通用文案，细节只出现在日志里
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	var pub publicError
	if errors.As(err, &pub) {
		return pub.PublicMessage()
	}
	return err.Error()
}

// Details 返回错误携带的结构化信息（例如剩余名额），没有则为 nil
func Details(err error) map[string]any {
	var d detailedError
	if errors.As(err, &d) {
		return d.Details()
	}
	return nil
}
