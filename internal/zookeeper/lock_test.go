package zookeeper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn 是只支持锁所需操作的内存 ZooKeeper
type fakeConn struct {
	mu       sync.Mutex
	nodes    map[string]bool
	seq      int
	watchers map[string][]chan zk.Event
}

func newFakeConn() *fakeConn {
	return &fakeConn{nodes: map[string]bool{}, watchers: map[string][]chan zk.Event{}}
}

func (f *fakeConn) Exists(path string) (bool, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[path], &zk.Stat{}, nil
}

func (f *fakeConn) Create(path string, _ []byte, _ int32, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodes[path] {
		return "", zk.ErrNodeExists
	}
	f.nodes[path] = true
	return path, nil
}

func (f *fakeConn) CreateProtectedEphemeralSequential(path string, _ []byte, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	dir := path[:strings.LastIndex(path, "/")]
	base := path[strings.LastIndex(path, "/")+1:]
	// 随机前缀故意让字典序与序号相反
	node := fmt.Sprintf("%s/_c_%02d-%s%010d", dir, 99-f.seq, base, f.seq)
	f.nodes[node] = true
	return node, nil
}

func (f *fakeConn) Children(path string) ([]string, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for n := range f.nodes {
		if strings.HasPrefix(n, path+"/") && !strings.Contains(strings.TrimPrefix(n, path+"/"), "/") {
			out = append(out, strings.TrimPrefix(n, path+"/"))
		}
	}
	return out, &zk.Stat{}, nil
}

func (f *fakeConn) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan zk.Event, 1)
	f.watchers[path] = append(f.watchers[path], ch)
	return f.nodes[path], &zk.Stat{}, ch, nil
}

func (f *fakeConn) Delete(path string, _ int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.nodes[path] {
		return zk.ErrNoNode
	}
	delete(f.nodes, path)
	for _, ch := range f.watchers[path] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
	}
	delete(f.watchers, path)
	return nil
}

func TestLockIsMutuallyExclusive(t *testing.T) {
	conn := newFakeConn()

	first, err := NewDistributedLock(conn, "tour-1", time.Second)
	require.NoError(t, err)
	require.NoError(t, first.Lock(context.Background()))

	second, err := NewDistributedLock(conn, "tour-1", time.Second)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() { acquired <- second.Lock(context.Background()) }()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Unlock())
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second lock was never granted")
	}
	assert.NoError(t, second.Unlock())
}

func TestLockTimesOut(t *testing.T) {
	conn := newFakeConn()
	holder, err := NewDistributedLock(conn, "tour-2", time.Second)
	require.NoError(t, err)
	require.NoError(t, holder.Lock(context.Background()))

	waiter, err := NewDistributedLock(conn, "tour-2", 30*time.Millisecond)
	require.NoError(t, err)
	assert.ErrorIs(t, waiter.Lock(context.Background()), ErrLockTimeout)

	// 超时的等待者不能留下节点挡住后来者
	children, _, _ := conn.Children(lockRoot + "/tour-2")
	assert.Len(t, children, 1)
}

func TestUnlockWithoutLock(t *testing.T) {
	l, err := NewDistributedLock(newFakeConn(), "tour-3", time.Second)
	require.NoError(t, err)
	assert.Error(t, l.Unlock())
}
