package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	ctx := context.Background()
	hub := NewInMemoryHub()

	first, cancelFirst := hub.Subscribe(ctx)
	second, cancelSecond := hub.Subscribe(ctx)
	defer cancelFirst()
	defer cancelSecond()

	hub.Publish(ctx, "message_sent", map[string]any{"registration_id": int64(1)})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case event := <-ch:
			assert.Equal(t, "message_sent", event.Name)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	ctx := context.Background()
	hub := NewInMemoryHub()

	ch, cancel := hub.Subscribe(ctx)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Cancel is idempotent and publishing after cancel is safe.
	cancel()
	hub.Publish(ctx, "message_sent", nil)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	ctx := context.Background()
	hub := NewInMemoryHub()

	ch, cancel := hub.Subscribe(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(ctx, "tick", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	require.Len(t, ch, subscriberBuffer)
}
