package idempotency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scopeUser(*http.Request) string { return "user-1" }

func TestSeen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStore(db, time.Hour)

	mock.ExpectSetNX("idem:user-1:abc", "1", time.Hour).SetVal(true)
	mock.ExpectSetNX("idem:user-1:abc", "1", time.Hour).SetVal(false)

	seen, err := store.Seen(context.Background(), store.Key("user-1", "abc"))
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.Seen(context.Background(), store.Key("user-1", "abc"))
	require.NoError(t, err)
	assert.True(t, seen)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareRejectsDuplicate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStore(db, time.Hour)
	mock.ExpectSetNX("idem:user-1:k1", "1", time.Hour).SetVal(false)

	called := false
	h := Middleware(store, scopeUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set(HeaderKey, "k1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareReleasesKeyOnFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStore(db, time.Hour)
	mock.ExpectSetNX("idem:user-1:k2", "1", time.Hour).SetVal(true)
	mock.ExpectDel("idem:user-1:k2").SetVal(1)

	h := Middleware(store, scopeUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set(HeaderKey, "k2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStore(db, time.Hour)
	mock.ExpectSetNX("idem:user-1:k3", "1", time.Hour).SetErr(errors.New("connection refused"))

	called := false
	h := Middleware(store, scopeUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set(HeaderKey, "k3")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMiddlewareWithoutHeaderPassesThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStore(db, time.Hour)

	rec := httptest.NewRecorder()
	Middleware(store, scopeUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
