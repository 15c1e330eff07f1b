package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	platformredis "regnotify/internal/platform/redis"
)

const channel = "regnotify:events"

// RedisHub fans events out over Redis pub/sub so every replica's console
// subscribers see the same stream.
type RedisHub struct {
	client *platformredis.Client
	logger *slog.Logger
}

func NewRedisHub(client *platformredis.Client, logger *slog.Logger) *RedisHub {
	return &RedisHub{
		client: client,
		logger: logger.With("component", "events"),
	}
}

func (h *RedisHub) Publish(ctx context.Context, name string, payload any) {
	event := Event{Name: name, Payload: payload, At: time.Now()}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode event", "event", name, "error", err)
		return
	}
	if err := h.client.Publish(ctx, channel, data).Err(); err != nil {
		h.logger.WarnContext(ctx, "failed to publish event", "event", name, "error", err)
	}
}

func (h *RedisHub) Subscribe(ctx context.Context) (<-chan Event, func()) {
	sub := h.client.Client.Subscribe(ctx, channel)
	out := make(chan Event, subscriberBuffer)

	done := make(chan struct{})
	go func() {
		defer close(out)
		in := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.logger.WarnContext(ctx, "failed to decode event", "error", err)
					continue
				}
				select {
				case out <- event:
				default:
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return out, cancel
}
