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
	"tourhub/internal/service/identity/application"
	"tourhub/internal/service/identity/domain"
)

type memUsers struct {
	byID map[int64]*domain.User
	next int64
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.next++
	u.ID = m.next
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.UserNotFound(id)
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Update(_ context.Context, id int64, p domain.UserPatch) error {
	u := m.byID[id]
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	return nil
}

func (m *memUsers) List(context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUsers) ListByRole(context.Context, auth.Role) ([]domain.User, error) { return nil, nil }

func (m *memUsers) Delete(_ context.Context, id int64) error {
	delete(m.byID, id)
	return nil
}

type stubImages struct{}

func (stubImages) Save(category string, fh *multipart.FileHeader) (string, error) {
	return "/images/" + category + "/" + fh.Filename, nil
}

func (stubImages) Remove(string) error { return nil }

func newRouter(t *testing.T) *chi.Mux {
	t.Helper()
	tokens := auth.NewTokenManager("secret", time.Hour)
	svc := application.NewIdentityService(&memUsers{byID: map[int64]*domain.User{}}, tokens, stubImages{},
		"admin@example.com", noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, svc.EnsureDefaultAdmin(context.Background(), "admin123"))

	r := chi.NewRouter()
	NewIdentityHandler(svc, auth.NewMiddleware(tokens, svc), 1<<20).RegisterRoutes(r)
	return r
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, r http.Handler, email, password string) application.AuthResponse {
	t.Helper()
	rec := call(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp application.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterLoginMe(t *testing.T) {
	r := newRouter(t)

	rec := call(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret1")

	resp := login(t, r, "ann@example.com", "secret1")
	rec = call(t, r, http.MethodGet, "/api/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ann@example.com"`)

	rec = call(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, r, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleChangeAppliesImmediately(t *testing.T) {
	r := newRouter(t)
	call(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "secret1",
	})
	user := login(t, r, "ann@example.com", "secret1")
	admin := login(t, r, "admin@example.com", "admin123")

	rec := call(t, r, http.MethodGet, "/api/users", user.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, r, http.MethodPatch, "/api/users/2/role", admin.Token, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 旧令牌中的角色仍是 user，但中间件按最新角色放行
	rec = call(t, r, http.MethodGet, "/api/users", user.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, r, http.MethodPatch, "/api/users/1/role", admin.Token, map[string]string{"role": "user"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, r, http.MethodDelete, "/api/users/1", admin.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, r, http.MethodDelete, "/api/users/2", admin.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, r, http.MethodGet, "/api/auth/me", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "deleted users lose access")
}
