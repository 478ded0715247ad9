// internal/pkg/idempotency/store.go
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Store 用 Redis SETNX 记录已经见过的幂等键
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewStore 创建幂等键存储，ttl 为键的保留时间
func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Key 按作用域（通常是用户）隔离客户端提供的幂等键
func (s *Store) Key(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}

// Seen 原子地登记键，已存在时返回 true
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis setnx")
	}
	return !ok, nil
}

// Forget 删除键，使失败的请求可以用同一个键重试
func (s *Store) Forget(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}
