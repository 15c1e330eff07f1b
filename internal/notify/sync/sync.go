// Package sync copies new registrations from the external registration table
// into the notifier's tracking store.
package sync

import (
	"context"
	"log/slog"

	"regnotify/internal/notify/store/tracking"
	"regnotify/internal/platform/metrics"
	"regnotify/internal/registrations"
)

// Service pulls registrations past the current watermark and upserts them as
// tracking rows. The watermark is the highest registration id already synced,
// so a run after a crash resumes without duplicating rows.
type Service struct {
	source   registrations.Source
	tracking tracking.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With("component", "sync")
	}
}

func New(source registrations.Source, store tracking.Store, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		source:   source,
		tracking: store,
		metrics:  m,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sync pass and returns how many rows were upserted. A
// failure on one row is logged and skipped; the remaining rows still sync.
func (s *Service) Run(ctx context.Context) (int, error) {
	watermark, err := s.tracking.MaxRegistrationID(ctx)
	if err != nil {
		return 0, err
	}

	regs, err := s.source.ListAfter(ctx, watermark)
	if err != nil {
		return 0, err
	}
	if len(regs) == 0 {
		return 0, nil
	}

	synced := 0
	for _, reg := range regs {
		if err := s.tracking.Upsert(ctx, reg); err != nil {
			s.logger.ErrorContext(ctx, "failed to sync registration",
				"registration_id", reg.ID, "error", err)
			continue
		}
		synced++
	}

	if s.metrics != nil {
		s.metrics.AddSynced(synced)
	}
	s.logger.InfoContext(ctx, "synced registrations",
		"watermark", watermark, "new", len(regs), "synced", synced)
	return synced, nil
}
