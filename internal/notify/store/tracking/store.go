package tracking

import (
	"context"
	"time"

	"regnotify/internal/notify/models"
)

// Store is the delivery tracking record store. Postgres backs production; the
// in-memory implementation backs unit tests and mirrors the same eligibility
// predicates.
type Store interface {
	// Upsert creates a tracking row for a source registration or, when the row
	// already exists, refreshes only the denormalized registrant fields. Stage
	// bookkeeping columns are never touched by an upsert.
	Upsert(ctx context.Context, reg models.Registration) error

	// MaxRegistrationID returns the sync watermark (0 when empty).
	MaxRegistrationID(ctx context.Context) (int64, error)

	// Pending selects up to limit rows eligible for the stage's next attempt,
	// oldest registration first. Eligibility per stage:
	//   confirmation/admin: not sent, cooled down, attempts left
	//   barcode:            confirmation sent >= 2s ago, not locked, cooled down
	//   change request:     confirmation sent >= 1m ago, cooled down
	Pending(ctx context.Context, stage models.Stage, limit int) ([]*models.TrackingRecord, error)

	// MarkSent records a successful delivery: sent flag up, sent_at set, retry
	// counter reset. The barcode stage also releases the processing lock.
	MarkSent(ctx context.Context, registrationID int64, stage models.Stage) error

	// MarkFailed records a failed attempt: retry counter up (a permanent
	// failure jumps straight to the cap), last_attempt set. The barcode stage
	// also releases the processing lock.
	MarkFailed(ctx context.Context, registrationID int64, stage models.Stage, permanent bool) error

	// ClaimProcessing atomically sets the processing lock, reporting whether
	// this caller won the claim. A false return means another cycle holds it.
	ClaimProcessing(ctx context.Context, registrationID int64) (bool, error)

	// ReleaseProcessing unconditionally clears the processing lock.
	ReleaseProcessing(ctx context.Context, registrationID int64) error

	// ReleaseStale clears processing locks not touched within olderThan and
	// returns how many rows were recovered.
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)

	// FindByNoOrMobile locates a row for the manual re-send endpoints.
	FindByNoOrMobile(ctx context.Context, registrationNo, mobile string) (*models.TrackingRecord, error)

	// Stats aggregates per-stage progress for the dashboard.
	Stats(ctx context.Context) (*models.SyncStats, error)
}
