// Package audit keeps a verbatim trail of inbound webhook traffic. Payloads
// are produced to Kafka exactly as received so provider disputes can be
// settled from the log; when no brokers are configured the trail is a no-op.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Entry is one recorded webhook delivery.
type Entry struct {
	Source     string          `json:"source"`
	RemoteAddr string          `json:"remote_addr"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Trail records webhook deliveries. Record never blocks the webhook response.
type Trail interface {
	Record(ctx context.Context, entry Entry)
	Close()
}

// KafkaTrail produces entries to a Kafka topic.
type KafkaTrail struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaTrail(brokers []string, topic string, logger *slog.Logger) (*KafkaTrail, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaTrail{
		client: client,
		topic:  topic,
		logger: logger.With("component", "audit"),
	}, nil
}

func (t *KafkaTrail) Record(ctx context.Context, entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		t.logger.ErrorContext(ctx, "failed to encode audit entry", "error", err)
		return
	}

	record := &kgo.Record{Topic: t.topic, Value: data}
	t.client.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			t.logger.ErrorContext(ctx, "failed to produce audit entry", "error", err)
		}
	})
}

func (t *KafkaTrail) Close() {
	t.client.Close()
}

// NopTrail drops everything; used when auditing is not configured.
type NopTrail struct{}

func (NopTrail) Record(context.Context, Entry) {}
func (NopTrail) Close()                        {}
