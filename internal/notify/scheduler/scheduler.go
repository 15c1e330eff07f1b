// Package scheduler drives the background loops: registration sync, the
// dispatch cycle, and the stale-lock reaper. Each loop ticks independently;
// an error is logged and the next tick tries again.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"regnotify/internal/notify/dispatch"
	regsync "regnotify/internal/notify/sync"
)

type Scheduler struct {
	sync       *regsync.Service
	dispatcher *dispatch.Dispatcher
	reaper     *dispatch.Reaper

	syncInterval     time.Duration
	dispatchInterval time.Duration
	reapInterval     time.Duration

	logger *slog.Logger
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger.With("component", "scheduler") }
}

func New(
	syncSvc *regsync.Service,
	dispatcher *dispatch.Dispatcher,
	reaper *dispatch.Reaper,
	syncInterval, dispatchInterval, reapInterval time.Duration,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		sync:             syncSvc,
		dispatcher:       dispatcher,
		reaper:           reaper,
		syncInterval:     syncInterval,
		dispatchInterval: dispatchInterval,
		reapInterval:     reapInterval,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled, then returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.loop(ctx, "sync", s.syncInterval, func(ctx context.Context) error {
			_, err := s.sync.Run(ctx)
			return err
		})
		return nil
	})
	g.Go(func() error {
		s.loop(ctx, "dispatch", s.dispatchInterval, s.dispatcher.RunCycle)
		return nil
	})
	g.Go(func() error {
		s.loop(ctx, "reap", s.reapInterval, func(ctx context.Context) error {
			_, err := s.reaper.Run(ctx)
			return err
		})
		return nil
	})

	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := run(ctx); err != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "background loop iteration failed",
				"loop", name, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
