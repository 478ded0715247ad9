package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type capacityErr struct{ remaining int }

func (e *capacityErr) Error() string           { return "not enough slots" }
func (e *capacityErr) Unwrap() error           { return ErrInsufficientCapacity }
func (e *capacityErr) PublicMessage() string   { return "only 2 left" }
func (e *capacityErr) Details() map[string]any { return map[string]any{"remaining": e.remaining} }

func TestStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad %s", "input"), http.StatusBadRequest},
		{"not found", NotFound("tour %d not found", 7), http.StatusNotFound},
		{"forbidden", Forbidden("no"), http.StatusForbidden},
		{"conflict", Conflict("busy"), http.StatusConflict},
		{"unauthorized", Unauthorized("token"), http.StatusUnauthorized},
		{"capacity", &capacityErr{remaining: 2}, http.StatusConflict},
		{"wrapped", errors.Wrap(NotFound("gone"), "load order"), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Status(tc.err))
		})
	}
}

func TestMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("dial tcp 10.0.0.1: refused")))
	assert.Equal(t, "tour 7 not found", Message(errors.Wrap(NotFound("tour %d not found", 7), "repo")))
	assert.Equal(t, "only 2 left", Message(&capacityErr{remaining: 2}))
}

func TestWrapKeepsCauseReachable(t *testing.T) {
	cause := errors.New("deadlock")
	err := Wrap(ErrConflict, cause, "concurrent update, please retry")

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "concurrent update, please retry", Message(err))
}

func TestDetails(t *testing.T) {
	assert.Equal(t, map[string]any{"remaining": 2}, Details(&capacityErr{remaining: 2}))
	assert.Nil(t, Details(Validation("x")))
}
