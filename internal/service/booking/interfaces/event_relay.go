// internal/service/booking/interfaces/event_relay.go
package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tourhub/internal/pkg/logger"
	"tourhub/internal/pkg/mq"
	"tourhub/internal/service/booking/domain"
	"tourhub/internal/service/booking/domain/port"
)

// EventRelay 消费 Kafka 中的订单事件并转交给本节点的发布者（通常是 websocket 推送）。
// 每个节点使用独立的消费组，因此连接在任意节点上的用户都能收到推送
type EventRelay struct {
	reader mq.MessageReader
	sink   port.EventPublisher
	tracer trace.Tracer
}

func NewEventRelay(reader mq.MessageReader, sink port.EventPublisher, tracer trace.Tracer) *EventRelay {
	return &EventRelay{reader: reader, sink: sink, tracer: tracer}
}

// Run 持续消费直到 ctx 结束，返回时关闭 reader
func (r *EventRelay) Run(ctx context.Context) error {
	defer r.reader.Close()
	logger.Ctx(ctx).Info().Msg("✅ order event relay started")
	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Msg("🛑 order event relay shutting down")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("❌ could not fetch order event, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		r.handle(ctx, msg)
		if err := r.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("⚠️ failed to commit order event offset")
		}
	}
}

// handle 处理单条消息。无法解析的消息记录后跳过
func (r *EventRelay) handle(parent context.Context, msg kafka.Message) {
	ctx := mq.ExtractTraceContext(parent, msg)
	ctx, span := r.tracer.Start(ctx, "relay.OrderEvent",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		))
	defer span.End()

	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed order event")
		logger.Ctx(ctx).Warn().Err(err).Int64("offset", msg.Offset).Msg("⚠️ skipping malformed order event")
		return
	}
	span.SetAttributes(attribute.Int64("order.id", event.OrderID), attribute.String("event.type", event.Type))
	if err := r.sink.Publish(ctx, event); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).Int64("order_id", event.OrderID).Msg("⚠️ failed to relay order event")
	}
}
