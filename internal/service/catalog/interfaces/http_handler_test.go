package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"tourhub/internal/pkg/auth"
	"tourhub/internal/service/catalog/application"
	"tourhub/internal/service/catalog/domain"
)

type memRepo struct {
	tours map[int64]domain.Tour
	next  int64
}

func (m *memRepo) List(context.Context, domain.Filter) ([]domain.Tour, error) {
	var out []domain.Tour
	for _, t := range m.tours {
		out = append(out, t)
	}
	return out, nil
}

func (m *memRepo) FindByID(_ context.Context, id int64) (*domain.Tour, error) {
	t, ok := m.tours[id]
	if !ok {
		return nil, domain.TourNotFound(id)
	}
	return &t, nil
}

func (m *memRepo) Create(_ context.Context, t *domain.Tour) error {
	m.next++
	t.ID = m.next
	m.tours[t.ID] = *t
	return nil
}

func (m *memRepo) Update(_ context.Context, id int64, p domain.TourPatch) error {
	t := m.tours[id]
	if p.Name != nil {
		t.Name = *p.Name
	}
	m.tours[id] = t
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	delete(m.tours, id)
	return nil
}

func (m *memRepo) ListGuides(context.Context) ([]domain.Guide, error) {
	return []domain.Guide{{ID: 7, Name: "Greta"}}, nil
}

func (m *memRepo) IsGuide(_ context.Context, id int64) (bool, error) { return id == 7, nil }

type noImages struct{}

func (noImages) Save(category string, fh *multipart.FileHeader) (string, error) {
	return "/images/" + category + "/" + fh.Filename, nil
}

func (noImages) Remove(string) error { return nil }

type noResize struct{}

func (noResize) ResizeTour(context.Context, int64, int) error { return nil }

func newRouter(t *testing.T) (*chi.Mux, *auth.TokenManager) {
	t.Helper()
	svc := application.NewCatalogService(&memRepo{tours: map[int64]domain.Tour{}}, noResize{}, noImages{},
		noop.NewTracerProvider().Tracer("test"))
	tokens := auth.NewTokenManager("secret", time.Hour)
	r := chi.NewRouter()
	NewCatalogHandler(svc, auth.NewMiddleware(tokens, nil), 1<<20).RegisterRoutes(r)
	return r, tokens
}

func multipartBody(t *testing.T, fields map[string]string, withImage bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withImage {
		part, err := mw.CreateFormFile("image", "peak.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateAndFetchTour(t *testing.T) {
	router, tokens := newRouter(t)
	token, err := tokens.Issue(1, "admin@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	body, ct := multipartBody(t, map[string]string{
		"name":            "Peak Day",
		"price":           "75.5",
		"total_slots":     "6",
		"available_slots": "1",
		"guide_id":        "7",
	}, true)
	req := httptest.NewRequest(http.MethodPost, "/api/tours", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created application.TourResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 6, created.AvailableSlots, "available_slots from the form is ignored")
	assert.Equal(t, "/images/tours/peak.png", created.Image)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tours/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tours/guides", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Greta")
}

func TestManageToursRequiresAdmin(t *testing.T) {
	router, tokens := newRouter(t)
	token, err := tokens.Issue(2, "guide@example.com", auth.RoleGuide)
	require.NoError(t, err)

	body, ct := multipartBody(t, map[string]string{"name": "x", "price": "1", "total_slots": "1"}, false)
	req := httptest.NewRequest(http.MethodPost, "/api/tours", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/tours/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBadInput(t *testing.T) {
	router, tokens := newRouter(t)
	token, err := tokens.Issue(1, "admin@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	body, ct := multipartBody(t, map[string]string{"name": "x", "price": "cheap", "total_slots": "1"}, false)
	req := httptest.NewRequest(http.MethodPost, "/api/tours", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tours?minPrice=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tours/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
