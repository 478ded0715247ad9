// internal/service/catalog/interfaces/http_handler.go
package interfaces

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/auth"
	"tourhub/internal/pkg/httpx"
	"tourhub/internal/service/catalog/application"
	"tourhub/internal/service/catalog/domain"
)

// CatalogHandler 封装了线路目录的 HTTP 处理器
type CatalogHandler struct {
	service   *application.CatalogService
	authn     *auth.Middleware
	maxUpload int64
}

// NewCatalogHandler 创建处理器。maxUpload 是单次表单上传的字节上限
func NewCatalogHandler(service *application.CatalogService, authn *auth.Middleware, maxUpload int64) *CatalogHandler {
	return &CatalogHandler{service: service, authn: authn, maxUpload: maxUpload}
}

// RegisterRoutes 注册线路目录的路由
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/tours", h.handleList)
	r.Get("/api/tours/guides", h.handleGuides)
	r.Get("/api/tours/{id}", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(h.authn.Authenticate, auth.Require(auth.CapManageTours))
		r.Post("/api/tours", h.handleCreate)
		r.Put("/api/tours/{id}", h.handleUpdate)
		r.Delete("/api/tours/{id}", h.handleDelete)
	})
}

func (h *CatalogHandler) handleList(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	tours, err := h.service.ListTours(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tours)
}

func (h *CatalogHandler) handleGuides(w http.ResponseWriter, r *http.Request) {
	guides, err := h.service.ListGuides(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, guides)
}

func (h *CatalogHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	tour, err := h.service.GetTour(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tour)
}

func (h *CatalogHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	in, image, err := h.parseForm(w, r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	tour, err := h.service.CreateTour(r.Context(), in, image)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, tour)
}

func (h *CatalogHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	in, image, err := h.parseForm(w, r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	tour, err := h.service.UpdateTour(r.Context(), id, in, image)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tour)
}

func (h *CatalogHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.service.DeleteTour(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Tour deleted successfully"})
}

// parseForm 读取 multipart 表单。available_slots 不从客户端接收
func (h *CatalogHandler) parseForm(w http.ResponseWriter, r *http.Request) (application.TourInput, *multipart.FileHeader, error) {
	var in application.TourInput
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			return in, nil, apperr.Validation("invalid multipart form")
		}
	} else if err := r.ParseForm(); err != nil {
		return in, nil, apperr.Validation("invalid form")
	}

	form := formReader{r: r}
	in.Name = form.str("name")
	in.Description = form.str("description")
	in.Difficulty = form.str("difficulty")
	in.Location = form.str("location")
	in.Duration = form.integer("duration")
	in.TotalSlots = form.integer("total_slots")
	in.Distance = form.number("distance")
	in.Price = form.number("price")
	in.GuideID = form.id("guide_id")
	if form.err != nil {
		return in, nil, form.err
	}

	if r.MultipartForm == nil {
		return in, nil, nil
	}
	_, fh, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil, nil
	case err != nil:
		return in, nil, apperr.Validation("invalid image upload")
	}
	return in, fh, nil
}

// formReader 逐个解析表单字段，记录第一个错误
type formReader struct {
	r   *http.Request
	err error
}

func (f *formReader) raw(key string) (string, bool) {
	if _, ok := f.r.Form[key]; !ok {
		return "", false
	}
	return strings.TrimSpace(f.r.FormValue(key)), true
}

func (f *formReader) str(key string) *string {
	v, ok := f.raw(key)
	if !ok {
		return nil
	}
	return &v
}

func (f *formReader) integer(key string) *int {
	v, ok := f.raw(key)
	if !ok || v == "" || f.err != nil {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.err = apperr.Validation("%s must be an integer", key)
		return nil
	}
	return &n
}

func (f *formReader) number(key string) *float64 {
	v, ok := f.raw(key)
	if !ok || v == "" || f.err != nil {
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		f.err = apperr.Validation("%s must be a number", key)
		return nil
	}
	return &n
}

func (f *formReader) id(key string) *int64 {
	v, ok := f.raw(key)
	if !ok || v == "" || f.err != nil {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		f.err = apperr.Validation("%s must be a positive integer", key)
		return nil
	}
	return &n
}

func parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	f := domain.Filter{
		Difficulty: q.Get("difficulty"),
		Location:   q.Get("location"),
	}
	for key, dst := range map[string]**float64{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		if raw := q.Get(key); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return f, apperr.Validation("%s must be a number", key)
			}
			*dst = &v
		}
	}
	if raw := q.Get("duration"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return f, apperr.Validation("duration must be an integer")
		}
		f.Duration = &v
	}
	return f, nil
}
