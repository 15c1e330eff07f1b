// Package registrations reads the event registration table owned by the
// registration site. The notifier never writes to it; everything here is
// read-only against the source of truth.
package registrations

import (
	"context"

	"regnotify/internal/notify/models"
)

// Source exposes the registration table to the sync loop, the broadcast
// composer and the dashboard.
type Source interface {
	// ListAfter returns registrations with an id strictly greater than
	// afterID, ordered by id ascending.
	ListAfter(ctx context.Context, afterID int64) ([]models.Registration, error)

	// Latest returns the most recent registrations, newest first.
	Latest(ctx context.Context, limit int) ([]models.Registration, error)

	// All returns every registration ordered by id ascending.
	All(ctx context.Context) ([]models.Registration, error)

	// Mobiles returns the distinct non-empty mobile numbers of all
	// registrants, for the "all registrants" broadcast audience.
	Mobiles(ctx context.Context) ([]string, error)

	// CountAll returns the total number of registrations.
	CountAll(ctx context.Context) (int, error)

	// CountToday returns registrations created since local midnight.
	CountToday(ctx context.Context) (int, error)

	// GenderCounts aggregates registrations by gender.
	GenderCounts(ctx context.Context) (map[string]int, error)

	// PositionCounts aggregates registrations by position.
	PositionCounts(ctx context.Context) (map[string]int, error)
}
