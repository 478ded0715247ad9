// internal/pkg/database/mysql.go
package database

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tourhub/internal/pkg/apperr"
)

// MySQL 服务端错误码
const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// Config 是数据库连接配置
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// NormalizeDSN 强制开启 parseTime，并补齐 UTC 时区和 utf8mb4 字符集
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	// driver 把 charset 解析进私有字段，只能回看原始参数判断用户是否指定过
	if !hasDSNParam(dsn, "charset") {
		if err := cfg.Apply(mysql.Charset("utf8mb4", "")); err != nil {
			return "", errors.Wrap(err, "apply mysql charset")
		}
	}
	return cfg.FormatDSN(), nil
}

func hasDSNParam(dsn, key string) bool {
	i := strings.LastIndex(dsn, "?")
	if i < 0 {
		return false
	}
	params, err := url.ParseQuery(dsn[i+1:])
	if err != nil {
		return false
	}
	return params.Has(key)
}

// Open 建立 gorm 连接并配置连接池
func Open(cfg Config) (*gorm.DB, error) {
	dsn, err := NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

func parseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// Classify 把可预期的 MySQL 错误翻译成应用错误，其余原样返回
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case errDeadlock, errLockWaitTimeout:
		return apperr.Wrap(apperr.ErrConflict, err, "concurrent update in progress, please retry")
	case errDuplicateEntry:
		return apperr.Wrap(apperr.ErrConflict, err, "resource already exists")
	}
	return err
}
