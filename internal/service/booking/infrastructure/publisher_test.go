package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourhub/internal/service/booking/domain"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

type recordingPublisher struct {
	events []domain.OrderEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, events ...domain.OrderEvent) error {
	r.events = append(r.events, events...)
	return r.err
}

func TestKafkaEventPublisherKeysByTour(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaEventPublisher(w)

	err := p.Publish(context.Background(),
		domain.OrderEvent{Type: domain.EventOrderPlaced, OrderID: 1, TourID: 7, Status: domain.StatusPending},
		domain.OrderEvent{Type: domain.EventOrderPlaced, OrderID: 2, TourID: 9, Status: domain.StatusPending},
	)
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "7", string(w.msgs[0].Key))
	assert.Equal(t, "9", string(w.msgs[1].Key))

	var decoded domain.OrderEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, int64(1), decoded.OrderID)
	assert.Equal(t, domain.StatusPending, decoded.Status)
}

func TestMultiPublisherContinuesAfterError(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}

	err := MultiPublisher{failing, ok}.Publish(context.Background(), domain.OrderEvent{OrderID: 1})
	assert.EqualError(t, err, "broker down")
	assert.Len(t, ok.events, 1)
}

func TestNoopTourLocker(t *testing.T) {
	unlock, err := NoopTourLocker{}.LockTours(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	unlock()
}
