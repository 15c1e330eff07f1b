package provider

import (
	"context"
	"log/slog"
	"time"
)

// Status is a point-in-time view of the messaging channel. QR is only set by
// generations that pair through a scanned code.
type Status struct {
	Connected bool   `json:"connected"`
	QR        string `json:"qr,omitempty"`
}

// StatusReporter is implemented by providers that can report more than the
// bare connected flag.
type StatusReporter interface {
	Status(ctx context.Context) (Status, error)
}

// StatusPublisher pushes channel-state events to the admin console.
type StatusPublisher interface {
	Publish(ctx context.Context, event string, payload any)
}

// StatusWatcher polls the provider and publishes transitions to the live
// event hub: connection flips as "connection_status", fresh pairing codes as
// "qr_code". Unchanged observations stay silent.
type StatusWatcher struct {
	provider Provider
	events   StatusPublisher
	interval time.Duration
	logger   *slog.Logger

	seen bool
	last Status
}

type StatusWatcherOption func(*StatusWatcher)

func WithStatusLogger(logger *slog.Logger) StatusWatcherOption {
	return func(w *StatusWatcher) { w.logger = logger.With("component", "status-watcher") }
}

func NewStatusWatcher(prov Provider, events StatusPublisher, interval time.Duration, opts ...StatusWatcherOption) *StatusWatcher {
	w := &StatusWatcher{
		provider: prov,
		events:   events,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until the context ends.
func (w *StatusWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check observes the channel once and publishes what changed. The first
// observation is always published so a console attaching early gets a
// baseline.
func (w *StatusWatcher) Check(ctx context.Context) {
	status := w.observe(ctx)

	if !w.seen || status.Connected != w.last.Connected {
		w.events.Publish(ctx, "connection_status", map[string]any{
			"connected": status.Connected,
			"provider":  w.provider.Name(),
		})
		w.logger.InfoContext(ctx, "channel state changed", "connected", status.Connected)
	}
	if status.QR != "" && status.QR != w.last.QR {
		w.events.Publish(ctx, "qr_code", map[string]any{"qr": status.QR})
	}

	w.seen = true
	w.last = status
}

func (w *StatusWatcher) observe(ctx context.Context) Status {
	if reporter, ok := w.provider.(StatusReporter); ok {
		status, err := reporter.Status(ctx)
		if err != nil {
			w.logger.WarnContext(ctx, "status probe failed", "error", err)
			return Status{}
		}
		return status
	}
	return Status{Connected: w.provider.Connected(ctx)}
}
