// internal/service/booking/infrastructure/publisher.go
package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"tourhub/internal/pkg/mq"
	"tourhub/internal/pkg/push"
	"tourhub/internal/service/booking/domain"
	"tourhub/internal/service/booking/domain/port"
)

// KafkaEventPublisher 把订单事件写入 Kafka，按线路 ID 分区以保证同一线路的事件有序
type KafkaEventPublisher struct {
	writer mq.MessageWriter
}

func NewKafkaEventPublisher(writer mq.MessageWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, events ...domain.OrderEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return errors.Wrap(err, "marshal order event")
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(e.TourID, 10)),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(e.Type)},
			},
		})
	}
	return mq.ProduceMessages(ctx, p.writer, msgs...)
}

// PushEventPublisher 把订单事件推送给订单所属用户的 websocket 连接
type PushEventPublisher struct {
	hub *push.Hub
}

func NewPushEventPublisher(hub *push.Hub) *PushEventPublisher {
	return &PushEventPublisher{hub: hub}
}

func (p *PushEventPublisher) Publish(_ context.Context, events ...domain.OrderEvent) error {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return errors.Wrap(err, "marshal order event")
		}
		p.hub.Send(e.UserID, payload)
	}
	return nil
}

// MultiPublisher 依次调用多个发布者，返回第一个错误但不中断后续发布
type MultiPublisher []port.EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, events ...domain.OrderEvent) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, events...); err != nil && first == nil {
			first = err
		}
	}
	return first
}
