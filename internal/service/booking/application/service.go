// internal/service/booking/application/service.go
package application

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/auth"
	"tourhub/internal/pkg/logger"
	"tourhub/internal/pkg/metrics"
	"tourhub/internal/pkg/tracing"
	"tourhub/internal/service/booking/domain"
	"tourhub/internal/service/booking/domain/port"
)

// guideViewConcurrency 限制导游视图并发加载参与者的数量
const guideViewConcurrency = 4

// BookingService 定义了预订模块的全部业务用例
type BookingService struct {
	repo         domain.Repository
	locker       port.TourLocker
	publisher    port.EventPublisher
	policy       port.TransitionPolicy
	reactivation domain.ReactivationPolicy
	tracer       trace.Tracer
	now          func() time.Time
}

// NewBookingService 创建预订服务
func NewBookingService(
	repo domain.Repository,
	locker port.TourLocker,
	publisher port.EventPublisher,
	policy port.TransitionPolicy,
	reactivation domain.ReactivationPolicy,
	tracer trace.Tracer,
) *BookingService {
	return &BookingService{
		repo:         repo,
		locker:       locker,
		publisher:    publisher,
		policy:       policy,
		reactivation: reactivation,
		tracer:       tracer,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// distinctTourIDs 返回去重后升序排列的线路 ID，作为统一的加锁顺序
func distinctTourIDs(items []domain.LineItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.TourID]; ok {
			continue
		}
		seen[it.TourID] = struct{}{}
		ids = append(ids, it.TourID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PlaceOrder 在一个事务内为整批订单行校验名额并创建订单，任一行失败则整体回滚
func (s *BookingService) PlaceOrder(ctx context.Context, p auth.Principal, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.PlaceOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", p.UserID),
		attribute.Int("order.items", len(req.Items)),
	)

	items := req.lineItems()
	if err := domain.ValidateItems(items); err != nil {
		return nil, fail(span, err)
	}
	tourIDs := distinctTourIDs(items)

	unlock, err := s.locker.LockTours(ctx, tourIDs)
	if err != nil {
		return nil, fail(span, err)
	}
	defer unlock()

	var placed []*domain.Order
	err = s.repo.Transact(ctx, func(tx domain.Tx) error {
		placed = placed[:0]

		// 1. 按 ID 升序锁定所有涉及的线路
		tours := make(map[int64]*domain.Tour, len(tourIDs))
		for _, id := range tourIDs {
			tour, err := tx.LockTour(ctx, id)
			if err != nil {
				return err
			}
			tours[id] = tour
		}

		// 2. 逐行校验剩余名额并落单。同一线路的多行依次累计占用
		for _, item := range items {
			tour := tours[item.TourID]
			reserved, err := tx.ReservedSlots(ctx, tour.ID)
			if err != nil {
				return err
			}
			if err := tour.CheckCapacity(reserved, item.Quantity); err != nil {
				metrics.CapacityRejections.WithLabelValues("place_order").Inc()
				return err
			}
			order := domain.NewOrder(p.UserID, item, s.now())
			if err := tx.InsertOrder(ctx, order); err != nil {
				return err
			}
			if err := tx.SetAvailableSlots(ctx, tour.ID, tour.AvailableAfter(reserved+item.Quantity)); err != nil {
				return err
			}
			placed = append(placed, order)
		}
		return nil
	})
	if err != nil {
		logger.Ctx(ctx).Info().Err(err).Int64("user_id", p.UserID).Msg("checkout rejected")
		return nil, fail(span, err)
	}

	resp := &PlaceOrderResponse{Message: "Order created successfully", OrderIDs: make([]int64, len(placed))}
	events := make([]domain.OrderEvent, len(placed))
	for i, o := range placed {
		resp.OrderIDs[i] = o.ID
		resp.TotalPrice += o.TotalPrice
		events[i] = s.newEvent(ctx, domain.EventOrderPlaced, o, "")
	}
	resp.TotalPrice = math.Round(resp.TotalPrice*100) / 100

	metrics.OrdersPlaced.Add(float64(len(placed)))
	span.AddEvent("orders committed", trace.WithAttributes(attribute.Int64Slice("order.ids", resp.OrderIDs)))
	logger.Ctx(ctx).Info().Ints64("order_ids", resp.OrderIDs).Float64("total_price", resp.TotalPrice).Msg("✅ orders placed")

	s.publish(ctx, events...)
	return resp, nil
}

// UpdateOrderStatus 修改订单状态，并在进出 cancelled 时同步名额
func (s *BookingService) UpdateOrderStatus(ctx context.Context, p auth.Principal, orderID int64, newStatus string) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status.to", newStatus),
	)

	to, err := domain.ParseStatus(newStatus)
	if err != nil {
		return nil, fail(span, err)
	}

	// tour_id 不可变，可以在事务外读取以确定加锁对象
	current, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, fail(span, err)
	}
	unlock, err := s.locker.LockTours(ctx, []int64{current.TourID})
	if err != nil {
		return nil, fail(span, err)
	}
	defer unlock()

	var (
		updated *domain.Order
		from    domain.Status
	)
	err = s.repo.Transact(ctx, func(tx domain.Tx) error {
		tour, err := tx.LockTour(ctx, current.TourID)
		if err != nil {
			return err
		}
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		allowed, err := s.policy.Allow(ctx, port.TransitionInput{
			Role:        string(p.Role),
			From:        from,
			To:          to,
			IsTourGuide: tour.IsGuidedBy(p.UserID),
		})
		if err != nil {
			return err
		}
		if !allowed {
			return apperr.Forbidden("role %s may not change order %d from %s to %s", p.Role, orderID, from, to)
		}
		if from == to {
			updated = order
			return nil
		}

		reserved, err := tx.ReservedSlots(ctx, tour.ID)
		if err != nil {
			return err
		}
		effect := order.TransitionTo(to, s.now())
		switch effect {
		case domain.SlotReserve:
			// trusted-admin 只豁免管理员，导游恢复订单仍需校验余量
			if s.reactivation == domain.ReactivationStrict || !p.IsAdmin() {
				if err := tour.CheckCapacity(reserved, order.Quantity); err != nil {
					metrics.CapacityRejections.WithLabelValues("reactivate_order").Inc()
					return err
				}
			}
			reserved += order.Quantity
		case domain.SlotRelease:
			reserved -= order.Quantity
		}

		if err := tx.UpdateOrderStatus(ctx, order.ID, to, order.UpdatedAt); err != nil {
			return err
		}
		if effect != domain.SlotUnchanged {
			if err := tx.SetAvailableSlots(ctx, tour.ID, tour.AvailableAfter(reserved)); err != nil {
				return err
			}
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	if from != to {
		metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
		logger.Ctx(ctx).Info().
			Int64("order_id", orderID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("order status updated")
		s.publish(ctx, s.newEvent(ctx, domain.EventOrderStatusChanged, updated, from))
	}
	resp := toOrderResponse(updated)
	return &resp, nil
}

// ResizeTour 修改线路总名额。新总数不能小于已占用的名额
func (s *BookingService) ResizeTour(ctx context.Context, tourID int64, totalSlots int) error {
	ctx, span := s.tracer.Start(ctx, "service.ResizeTour")
	defer span.End()
	span.SetAttributes(attribute.Int64("tour.id", tourID), attribute.Int("tour.total_slots", totalSlots))

	if totalSlots <= 0 {
		return fail(span, apperr.Validation("total_slots must be a positive integer"))
	}

	unlock, err := s.locker.LockTours(ctx, []int64{tourID})
	if err != nil {
		return fail(span, err)
	}
	defer unlock()

	err = s.repo.Transact(ctx, func(tx domain.Tx) error {
		tour, err := tx.LockTour(ctx, tourID)
		if err != nil {
			return err
		}
		reserved, err := tx.ReservedSlots(ctx, tourID)
		if err != nil {
			return err
		}
		resized := *tour
		resized.TotalSlots = totalSlots
		// 已占用的名额必须能放进新的总数
		if err := resized.CheckCapacity(0, reserved); err != nil {
			metrics.CapacityRejections.WithLabelValues("resize_tour").Inc()
			return err
		}
		return tx.SetCapacity(ctx, tourID, totalSlots, resized.AvailableAfter(reserved))
	})
	if err != nil {
		return fail(span, err)
	}
	return nil
}

// TourParticipants 返回线路的参与者列表，仅管理员和该线路导游可见
func (s *BookingService) TourParticipants(ctx context.Context, p auth.Principal, tourID int64) ([]ParticipantResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.TourParticipants")
	defer span.End()
	span.SetAttributes(attribute.Int64("tour.id", tourID))

	tour, err := s.repo.FindTour(ctx, tourID)
	if err != nil {
		return nil, fail(span, err)
	}
	if !p.IsAdmin() && !tour.IsGuidedBy(p.UserID) {
		return nil, fail(span, apperr.Forbidden("only the tour's guide or an administrator may view its participants"))
	}
	participants, err := s.repo.FindParticipants(ctx, tourID)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "load participants"))
	}
	domain.SortParticipants(participants)
	return toParticipantResponses(participants), nil
}

// GuideTours 返回调用方作为导游负责的所有线路及其参与者
func (s *BookingService) GuideTours(ctx context.Context, p auth.Principal) ([]GuideTourResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.GuideTours")
	defer span.End()

	tours, err := s.repo.FindToursByGuide(ctx, p.UserID)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "load guide tours"))
	}

	result := make([]GuideTourResponse, len(tours))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(guideViewConcurrency)
	for i := range tours {
		tour := tours[i]
		g.Go(func() error {
			participants, err := s.repo.FindParticipants(gctx, tour.ID)
			if err != nil {
				return errors.Wrapf(err, "load participants of tour %d", tour.ID)
			}
			domain.SortParticipants(participants)
			ordered := domain.ReservedBy(participants)
			result[i] = GuideTourResponse{
				ID:                tour.ID,
				Name:              tour.Name,
				Image:             tour.Image,
				Price:             tour.Price,
				TotalSlots:        tour.TotalSlots,
				AvailableSlots:    tour.AvailableSlots,
				Participants:      toParticipantResponses(participants),
				TotalOrderedSlots: ordered,
				IsFull:            tour.TotalSlots > 0 && ordered >= tour.TotalSlots,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("guide.tours", len(result)))
	return result, nil
}

// MyOrders 返回调用方自己的订单，最新的在前
func (s *BookingService) MyOrders(ctx context.Context, p auth.Principal) ([]OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.MyOrders")
	defer span.End()

	views, err := s.repo.FindOrdersByUser(ctx, p.UserID)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "load user orders"))
	}
	return toOrderResponses(views), nil
}

// AllOrders 返回全部订单
func (s *BookingService) AllOrders(ctx context.Context) ([]OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.AllOrders")
	defer span.End()

	views, err := s.repo.FindAllOrders(ctx)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "load orders"))
	}
	return toOrderResponses(views), nil
}

// TourOrderCount 返回线路未取消订单占用的名额
func (s *BookingService) TourOrderCount(ctx context.Context, tourID int64) (*TourOrderCountResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.TourOrderCount")
	defer span.End()

	if _, err := s.repo.FindTour(ctx, tourID); err != nil {
		return nil, fail(span, err)
	}
	reserved, err := s.repo.ReservedSlots(ctx, tourID)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "count reserved slots"))
	}
	return &TourOrderCountResponse{TotalOrders: reserved}, nil
}

// 用户行程分组
const (
	BucketUpcoming  = "upcoming"
	BucketCompleted = "completed"
)

// UserTours 按分组返回用户的订单。upcoming 为未取消且未完成的订单
func (s *BookingService) UserTours(ctx context.Context, p auth.Principal, userID int64, bucket string) ([]OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.UserTours")
	defer span.End()

	if p.UserID != userID && !p.IsAdmin() {
		return nil, fail(span, apperr.Forbidden("cannot view another user's tours"))
	}
	var keep func(domain.Status) bool
	switch bucket {
	case BucketUpcoming:
		keep = func(st domain.Status) bool { return st.Active() && st != domain.StatusCompleted }
	case BucketCompleted:
		keep = func(st domain.Status) bool { return st == domain.StatusCompleted }
	default:
		return nil, fail(span, apperr.Validation("unknown tour bucket %q, must be upcoming or completed", bucket))
	}

	views, err := s.repo.FindOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "load user orders"))
	}
	filtered := views[:0]
	for _, v := range views {
		if keep(v.Status) {
			filtered = append(filtered, v)
		}
	}
	return toOrderResponses(filtered), nil
}

// CompleteUserTour 把用户在该线路上的活跃订单标记为 completed，不改变名额
func (s *BookingService) CompleteUserTour(ctx context.Context, userID, tourID int64) (*CompleteUserTourResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.CompleteUserTour")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("tour.id", tourID))

	var n int64
	err := s.repo.Transact(ctx, func(tx domain.Tx) error {
		if _, err := tx.LockTour(ctx, tourID); err != nil {
			return err
		}
		var err error
		n, err = tx.CompleteOrders(ctx, userID, tourID, s.now())
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}
	if n == 0 {
		return nil, fail(span, apperr.NotFound("no active orders of user %d for tour %d", userID, tourID))
	}
	metrics.StatusTransitions.WithLabelValues("active", string(domain.StatusCompleted)).Add(float64(n))
	return &CompleteUserTourResponse{Message: "Tour marked as completed", UpdatedOrders: n}, nil
}

func (s *BookingService) newEvent(ctx context.Context, typ string, o *domain.Order, from domain.Status) domain.OrderEvent {
	return domain.OrderEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		OrderID:    o.ID,
		UserID:     o.UserID,
		TourID:     o.TourID,
		Quantity:   o.Quantity,
		From:       from,
		Status:     o.Status,
		TraceID:    tracing.TraceIDFromContext(ctx),
		OccurredAt: s.now(),
	}
}

// publish 是提交后的尽力而为通知，失败只记录日志
func (s *BookingService) publish(ctx context.Context, events ...domain.OrderEvent) {
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int("events", len(events)).Msg("⚠️ failed to publish order events")
	}
}
