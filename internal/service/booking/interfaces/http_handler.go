// internal/service/booking/interfaces/http_handler.go
package interfaces

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/auth"
	"tourhub/internal/pkg/httpx"
	"tourhub/internal/pkg/idempotency"
	"tourhub/internal/service/booking/application"
)

// BookingHandler 封装了预订模块的 HTTP 处理器
type BookingHandler struct {
	service *application.BookingService
	authn   *auth.Middleware
	idem    *idempotency.Store
}

// NewBookingHandler 创建处理器。idem 为 nil 时下单不做幂等检查
func NewBookingHandler(service *application.BookingService, authn *auth.Middleware, idem *idempotency.Store) *BookingHandler {
	return &BookingHandler{service: service, authn: authn, idem: idem}
}

// principalScope 以用户为幂等键的作用域
func principalScope(r *http.Request) string {
	p, _ := auth.FromContext(r.Context())
	return "user-" + strconv.FormatInt(p.UserID, 10)
}

// RegisterRoutes 在路由器上注册预订相关的路由
func (h *BookingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/orders/tour/{id}/count", h.handleTourOrderCount)

	r.Group(func(r chi.Router) {
		r.Use(h.authn.Authenticate)

		r.With(auth.Require(auth.CapPlaceOrder), idempotency.Middleware(h.idem, principalScope)).
			Post("/api/orders", h.handlePlaceOrder)
		r.With(auth.Require(auth.CapViewOwnOrders)).Get("/api/orders/my", h.handleMyOrders)
		r.With(auth.Require(auth.CapAdministerOrders)).Get("/api/orders", h.handleAllOrders)
		r.With(auth.Require(auth.CapManageOrders)).Patch("/api/orders/{id}/status", h.handleUpdateStatus)

		r.With(auth.Require(auth.CapViewGuideTours)).Get("/api/tours/guide-tours", h.handleGuideTours)
		r.With(auth.Require(auth.CapViewGuideTours)).Get("/api/tours/{id}/participants", h.handleParticipants)

		r.Get("/api/users/{id}/tours/{bucket}", h.handleUserTours)
		r.With(auth.Require(auth.CapAdministerOrders)).
			Post("/api/users/{userId}/tours/{tourId}/complete", h.handleCompleteUserTour)
	})
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func (h *BookingHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req application.PlaceOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	resp, err := h.service.PlaceOrder(r.Context(), principal(r), &req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *BookingHandler) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.MyOrders(r.Context(), principal(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *BookingHandler) handleAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.AllOrders(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *BookingHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var req application.UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if req.Status == "" {
		httpx.WriteError(w, r, apperr.Validation("status is required"))
		return
	}
	order, err := h.service.UpdateOrderStatus(r.Context(), principal(r), id, req.Status)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

func (h *BookingHandler) handleTourOrderCount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	resp, err := h.service.TourOrderCount(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) handleGuideTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.service.GuideTours(r.Context(), principal(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tours)
}

func (h *BookingHandler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	participants, err := h.service.TourParticipants(r.Context(), principal(r), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, participants)
}

func (h *BookingHandler) handleUserTours(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	orders, err := h.service.UserTours(r.Context(), principal(r), id, chi.URLParam(r, "bucket"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *BookingHandler) handleCompleteUserTour(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.PathID(r, "userId")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	tourID, err := httpx.PathID(r, "tourId")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	resp, err := h.service.CompleteUserTour(r.Context(), userID, tourID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
