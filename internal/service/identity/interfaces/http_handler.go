// internal/service/identity/interfaces/http_handler.go
package interfaces

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/auth"
	"tourhub/internal/pkg/httpx"
	"tourhub/internal/service/identity/application"
)

// IdentityHandler 封装了认证与用户管理的 HTTP 处理器
type IdentityHandler struct {
	service   *application.IdentityService
	authn     *auth.Middleware
	maxUpload int64
}

func NewIdentityHandler(service *application.IdentityService, authn *auth.Middleware, maxUpload int64) *IdentityHandler {
	return &IdentityHandler{service: service, authn: authn, maxUpload: maxUpload}
}

// RegisterRoutes 注册 /api/auth 与 /api/users 下的路由
func (h *IdentityHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/auth/register", h.handleRegister)
	r.Post("/api/auth/login", h.handleLogin)
	r.Get("/api/users/guides", h.handleGuides)

	r.Group(func(r chi.Router) {
		r.Use(h.authn.Authenticate)
		r.Get("/api/auth/me", h.handleMe)
		r.Put("/api/users/profile", h.handleUpdateProfile)
		r.Post("/api/users/avatar", h.handleUploadAvatar)

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(auth.CapManageUsers))
			r.Get("/api/users", h.handleListUsers)
			r.Get("/api/users/{id}", h.handleGetUser)
			r.Patch("/api/users/{id}/role", h.handleUpdateRole)
			r.Delete("/api/users/{id}", h.handleDeleteUser)
		})
	})
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/")
}

// formFile 读取可选的上传文件
func (h *IdentityHandler) formFile(w http.ResponseWriter, r *http.Request, field string) (*multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, apperr.Validation("invalid multipart form")
	}
	_, fh, err := r.FormFile(field)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return nil, nil
	case err != nil:
		return nil, apperr.Validation("invalid %s upload", field)
	}
	return fh, nil
}

func (h *IdentityHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var (
		req    application.RegisterRequest
		avatar *multipart.FileHeader
		err    error
	)
	if isMultipart(r) {
		if avatar, err = h.formFile(w, r, "avatar"); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		req.Name = r.FormValue("name")
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	} else if err = httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	resp, err := h.service.Register(r.Context(), req, avatar)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *IdentityHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *IdentityHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), principal(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *IdentityHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req application.ProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), principal(r), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *IdentityHandler) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		httpx.WriteError(w, r, apperr.Validation("multipart form with an avatar file is required"))
		return
	}
	fh, err := h.formFile(w, r, "avatar")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	user, err := h.service.UploadAvatar(r.Context(), principal(r), fh)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *IdentityHandler) handleGuides(w http.ResponseWriter, r *http.Request) {
	guides, err := h.service.ListGuides(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, guides)
}

func (h *IdentityHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *IdentityHandler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *IdentityHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var req application.RoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	user, err := h.service.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *IdentityHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), principal(r), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
