// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Setup 初始化全局 zerolog，所有请求级 logger 都从它派生
func Setup(serviceName, level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}
	zlog.Logger = zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()
	// ctx 中没有 logger 时，zerolog.Ctx 会退回到全局 logger
	zerolog.DefaultContextLogger = &zlog.Logger
}

// Ctx 返回绑定在 ctx 上的 logger
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// With 在 ctx 的 logger 上追加字段，并返回携带新 logger 的 ctx
func With(ctx context.Context, fn func(zerolog.Context) zerolog.Context) context.Context {
	l := fn(Ctx(ctx).With()).Logger()
	return l.WithContext(ctx)
}
