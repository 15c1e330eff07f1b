// Package events pushes live pipeline updates (deliveries, broadcast
// progress) to the admin console. The in-process hub serves a single node;
// the Redis hub fans out across replicas.
package events

import (
	"context"
	"time"
)

// Event is one live update.
type Event struct {
	Name    string    `json:"event"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Hub publishes events to any number of subscribers. Publish never blocks; a
// slow subscriber misses events rather than stalling the pipeline.
type Hub interface {
	Publish(ctx context.Context, name string, payload any)

	// Subscribe returns a channel of events and a cancel function. The channel
	// is closed after cancel.
	Subscribe(ctx context.Context) (<-chan Event, func())
}
