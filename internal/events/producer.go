package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"listenline/internal/calls"
)

// Producer publishes settlement events to Kafka. It satisfies
// calls.EventPublisher. A nil Producer is a valid no-op publisher, so
// deployments without a broker just leave it out of the wiring.
type Producer struct {
	writer *kafka.Writer
	log    *slog.Logger
}

func NewProducer(brokers []string, topic string, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("settlement event delivery failed", "count", len(messages), "err", err)
			}
		},
	}
	return &Producer{writer: writer, log: log}
}

// PublishSettlement enqueues one settlement event keyed by call id, so all
// events for a call land on the same partition in order.
func (p *Producer) PublishSettlement(ctx context.Context, ev calls.SettlementEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal settlement event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.CallID),
		Value: payload,
		Time:  ev.EndedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write settlement event: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
