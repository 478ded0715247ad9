// Package booktest 提供测试用的 domain.Repository 内存实现，只供测试代码引用。
// 事务持有全局互斥锁直到结束，失败时回滚到快照，语义上等价于对所有行加锁
package booktest

import (
	"context"
	"sort"
	"sync"
	"time"

	"tourhub/internal/service/booking/domain"
)

// User 是内存中的下单人信息
type User struct {
	ID    int64
	Name  string
	Email string
}

// Store 是内存仓储
type Store struct {
	mu          sync.Mutex
	tours       map[int64]domain.Tour
	users       map[int64]User
	orders      map[int64]domain.Order
	nextOrderID int64
}

// New 创建空仓储
func New() *Store {
	return &Store{
		tours:  make(map[int64]domain.Tour),
		users:  make(map[int64]User),
		orders: make(map[int64]domain.Order),
	}
}

func (s *Store) AddTour(t domain.Tour) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tours[t.ID] = t
}

func (s *Store) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddOrder 直接写入一笔订单，不做名额校验，用于准备测试数据
func (s *Store) AddOrder(o domain.Order) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOrderID++
	if o.ID == 0 {
		o.ID = s.nextOrderID
	}
	s.orders[o.ID] = o
	return o.ID
}

// Tour 返回线路当前状态
func (s *Store) Tour(id int64) (domain.Tour, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tours[id]
	return t, ok
}

// Orders 按 ID 升序返回所有订单
func (s *Store) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type snapshot struct {
	tours       map[int64]domain.Tour
	orders      map[int64]domain.Order
	nextOrderID int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		tours:       make(map[int64]domain.Tour, len(s.tours)),
		orders:      make(map[int64]domain.Order, len(s.orders)),
		nextOrderID: s.nextOrderID,
	}
	for k, v := range s.tours {
		snap.tours[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	return snap
}

func (s *Store) Transact(ctx context.Context, fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.tours, s.orders, s.nextOrderID = snap.tours, snap.orders, snap.nextOrderID
		return err
	}
	return nil
}

func (s *Store) FindTour(_ context.Context, tourID int64) (*domain.Tour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tours[tourID]
	if !ok {
		return nil, domain.TourNotFound(tourID)
	}
	return &t, nil
}

func (s *Store) FindOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.OrderNotFound(orderID)
	}
	return &o, nil
}

func (s *Store) FindOrdersByUser(_ context.Context, userID int64) ([]domain.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (s *Store) FindAllOrders(_ context.Context) ([]domain.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views(func(domain.Order) bool { return true }), nil
}

func (s *Store) views(keep func(domain.Order) bool) []domain.OrderView {
	out := []domain.OrderView{}
	for _, o := range s.orders {
		if !keep(o) {
			continue
		}
		t := s.tours[o.TourID]
		u := s.users[o.UserID]
		out = append(out, domain.OrderView{
			Order:     o,
			TourName:  t.Name,
			TourImage: t.Image,
			TourPrice: t.Price,
			UserName:  u.Name,
			UserEmail: u.Email,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) FindToursByGuide(_ context.Context, guideID int64) ([]domain.Tour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Tour{}
	for _, t := range s.tours {
		if t.IsGuidedBy(guideID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindParticipants(_ context.Context, tourID int64) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Participant{}
	for _, o := range s.orders {
		if o.TourID != tourID {
			continue
		}
		u := s.users[o.UserID]
		out = append(out, domain.Participant{
			UserID:    o.UserID,
			UserName:  u.Name,
			UserEmail: u.Email,
			OrderID:   o.ID,
			Status:    o.Status,
			Quantity:  o.Quantity,
			Notes:     o.Notes,
			TourPrice: s.tours[tourID].Price,
			CreatedAt: o.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) ReservedSlots(_ context.Context, tourID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserved(tourID), nil
}

func (s *Store) reserved(tourID int64) int {
	total := 0
	for _, o := range s.orders {
		if o.TourID == tourID && o.Status.Active() {
			total += o.Quantity
		}
	}
	return total
}

// memTx 在 Store.mu 已被持有的前提下操作数据
type memTx struct {
	s *Store
}

func (tx *memTx) LockTour(_ context.Context, tourID int64) (*domain.Tour, error) {
	t, ok := tx.s.tours[tourID]
	if !ok {
		return nil, domain.TourNotFound(tourID)
	}
	return &t, nil
}

func (tx *memTx) LockOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := tx.s.orders[orderID]
	if !ok {
		return nil, domain.OrderNotFound(orderID)
	}
	return &o, nil
}

func (tx *memTx) ReservedSlots(_ context.Context, tourID int64) (int, error) {
	return tx.s.reserved(tourID), nil
}

func (tx *memTx) InsertOrder(_ context.Context, order *domain.Order) error {
	tx.s.nextOrderID++
	order.ID = tx.s.nextOrderID
	tx.s.orders[order.ID] = *order
	return nil
}

func (tx *memTx) UpdateOrderStatus(_ context.Context, orderID int64, status domain.Status, at time.Time) error {
	o, ok := tx.s.orders[orderID]
	if !ok {
		return domain.OrderNotFound(orderID)
	}
	o.Status = status
	o.UpdatedAt = at
	tx.s.orders[orderID] = o
	return nil
}

func (tx *memTx) SetAvailableSlots(_ context.Context, tourID int64, available int) error {
	t, ok := tx.s.tours[tourID]
	if !ok {
		return domain.TourNotFound(tourID)
	}
	t.AvailableSlots = available
	tx.s.tours[tourID] = t
	return nil
}

func (tx *memTx) SetCapacity(_ context.Context, tourID int64, total, available int) error {
	t, ok := tx.s.tours[tourID]
	if !ok {
		return domain.TourNotFound(tourID)
	}
	t.TotalSlots = total
	t.AvailableSlots = available
	tx.s.tours[tourID] = t
	return nil
}

func (tx *memTx) CompleteOrders(_ context.Context, userID, tourID int64, at time.Time) (int64, error) {
	var n int64
	for id, o := range tx.s.orders {
		if o.UserID != userID || o.TourID != tourID {
			continue
		}
		if !o.Status.Active() || o.Status == domain.StatusCompleted {
			continue
		}
		o.Status = domain.StatusCompleted
		o.UpdatedAt = at
		tx.s.orders[id] = o
		n++
	}
	return n, nil
}
