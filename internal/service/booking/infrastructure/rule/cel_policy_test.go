package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourhub/internal/service/booking/domain"
	"tourhub/internal/service/booking/domain/port"
)

func TestDefaultRule(t *testing.T) {
	p, err := NewCELTransitionPolicy("")
	require.NoError(t, err)

	cases := []struct {
		name string
		in   port.TransitionInput
		want bool
	}{
		{"admin anything", port.TransitionInput{Role: "admin", From: domain.StatusCancelled, To: domain.StatusPending}, true},
		{"guide own tour", port.TransitionInput{Role: "guide", From: domain.StatusPending, To: domain.StatusConfirmed, IsTourGuide: true}, true},
		{"guide cancels own", port.TransitionInput{Role: "guide", From: domain.StatusConfirmed, To: domain.StatusCancelled, IsTourGuide: true}, true},
		{"guide other tour", port.TransitionInput{Role: "guide", From: domain.StatusPending, To: domain.StatusConfirmed}, false},
		{"guide back to pending", port.TransitionInput{Role: "guide", From: domain.StatusConfirmed, To: domain.StatusPending, IsTourGuide: true}, false},
		{"user", port.TransitionInput{Role: "user", From: domain.StatusPending, To: domain.StatusCancelled}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Allow(context.Background(), tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCustomRule(t *testing.T) {
	p, err := NewCELTransitionPolicy(`role == "admin" || from != "completed"`)
	require.NoError(t, err)

	ok, err := p.Allow(context.Background(), port.TransitionInput{Role: "guide", From: domain.StatusCompleted, To: domain.StatusCancelled})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidRules(t *testing.T) {
	_, err := NewCELTransitionPolicy(`role ==`)
	assert.Error(t, err)

	_, err = NewCELTransitionPolicy(`role`)
	assert.Error(t, err, "non-bool rules are rejected")

	_, err = NewCELTransitionPolicy(`unknown_var == 1`)
	assert.Error(t, err)
}
