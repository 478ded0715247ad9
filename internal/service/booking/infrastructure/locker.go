// internal/service/booking/infrastructure/locker.go
package infrastructure

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/logger"
	"tourhub/internal/zookeeper"
)

// NoopTourLocker 不做跨实例互斥，依赖数据库行锁
type NoopTourLocker struct{}

func (NoopTourLocker) LockTours(context.Context, []int64) (func(), error) {
	return func() {}, nil
}

// ZookeeperTourLocker 为每条线路持有一把 ZooKeeper 锁
type ZookeeperTourLocker struct {
	conn    zookeeper.Conn
	timeout time.Duration
}

// NewZookeeperTourLocker 创建基于 ZooKeeper 的线路锁
func NewZookeeperTourLocker(conn zookeeper.Conn, timeout time.Duration) *ZookeeperTourLocker {
	return &ZookeeperTourLocker{conn: conn, timeout: timeout}
}

// LockTours 按传入顺序逐个加锁，任一失败时释放已持有的锁
func (l *ZookeeperTourLocker) LockTours(ctx context.Context, tourIDs []int64) (func(), error) {
	held := make([]*zookeeper.DistributedLock, 0, len(tourIDs))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Unlock(); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("⚠️ failed to release tour lock")
			}
		}
	}

	for _, id := range tourIDs {
		lock, err := zookeeper.NewDistributedLock(l.conn, "tour-"+strconv.FormatInt(id, 10), l.timeout)
		if err != nil {
			release()
			return nil, errors.Wrapf(err, "prepare lock for tour %d", id)
		}
		if err := lock.Lock(ctx); err != nil {
			release()
			if errors.Is(err, zookeeper.ErrLockTimeout) {
				return nil, apperr.Wrap(apperr.ErrConflict, err, "tour is busy, please retry")
			}
			return nil, errors.Wrapf(err, "lock tour %d", id)
		}
		held = append(held, lock)
	}
	return release, nil
}
