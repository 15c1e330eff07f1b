package dispatch

import (
	"context"
	"log/slog"

	"regnotify/internal/notify/models"
	"regnotify/internal/notify/store/tracking"
	"regnotify/internal/platform/metrics"
)

// Reaper force-clears processing locks abandoned by a crashed or hung send so
// the rows become selectable again.
type Reaper struct {
	tracking tracking.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type ReaperOption func(*Reaper)

func WithReaperLogger(logger *slog.Logger) ReaperOption {
	return func(r *Reaper) { r.logger = logger.With("component", "reaper") }
}

func WithReaperMetrics(m *metrics.Metrics) ReaperOption {
	return func(r *Reaper) { r.metrics = m }
}

func NewReaper(store tracking.Store, opts ...ReaperOption) *Reaper {
	r := &Reaper{tracking: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run releases locks older than the staleness threshold and returns how many
// were recovered.
func (r *Reaper) Run(ctx context.Context) (int64, error) {
	released, err := r.tracking.ReleaseStale(ctx, models.StaleLockThreshold)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		if r.metrics != nil {
			r.metrics.AddReaped(int(released))
		}
		r.logger.WarnContext(ctx, "released stale processing locks", "count", released)
	}
	return released, nil
}
