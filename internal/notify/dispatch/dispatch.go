// Package dispatch runs the outbound delivery pipeline: it drains small
// batches of pending work per stage, sends through the provider, and records
// the outcome on the tracking row.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"regnotify/internal/notify/models"
	"regnotify/internal/notify/store/templates"
	"regnotify/internal/notify/store/tracking"
	"regnotify/internal/notify/template"
	"regnotify/internal/pass"
	"regnotify/internal/platform/metrics"
	"regnotify/internal/provider"
	"regnotify/internal/registrations"
	"regnotify/internal/settings"
	"regnotify/pkg/sentinel"
)

// BatchSize bounds the rows processed per stage per cycle so one cycle stays
// well inside the tick interval.
const BatchSize = 5

// Default jitter between consecutive sends in one cycle.
const (
	minSendGap = 500 * time.Millisecond
	maxSendGap = 1500 * time.Millisecond
)

// Sleeper pauses between sends. Injectable so tests run without waiting.
type Sleeper func(ctx context.Context)

// Publisher pushes live events to the admin console.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any)
}

// Dispatcher walks the four stages in order each cycle.
type Dispatcher struct {
	tracking  tracking.Store
	templates templates.Store
	source    registrations.Source
	provider  provider.Provider
	pass      pass.Renderer
	settings  *settings.Service
	metrics   *metrics.Metrics
	events    Publisher
	logger    *slog.Logger
	sleep     Sleeper
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger.With("component", "dispatch") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) { d.events = p }
}

func WithSleeper(s Sleeper) Option {
	return func(d *Dispatcher) { d.sleep = s }
}

func New(
	trackingStore tracking.Store,
	templateStore templates.Store,
	source registrations.Source,
	prov provider.Provider,
	passRenderer pass.Renderer,
	settingsSvc *settings.Service,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		tracking:  trackingStore,
		templates: templateStore,
		source:    source,
		provider:  prov,
		pass:      passRenderer,
		settings:  settingsSvc,
		logger:    slog.Default(),
		sleep:     jitterSleeper(minSendGap, maxSendGap),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func jitterSleeper(min, max time.Duration) Sleeper {
	return func(ctx context.Context) {
		gap := min + time.Duration(rand.Int63n(int64(max-min)))
		select {
		case <-ctx.Done():
		case <-time.After(gap):
		}
	}
}

// RunCycle processes one batch per stage. The whole cycle is skipped while the
// provider is disconnected so the retry budget is not burned on a dead channel.
func (d *Dispatcher) RunCycle(ctx context.Context) error {
	if !d.provider.Connected(ctx) {
		d.logger.DebugContext(ctx, "provider disconnected, skipping dispatch cycle")
		return nil
	}

	start := time.Now()
	for _, stage := range models.Stages {
		if err := d.processStage(ctx, stage); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if d.metrics != nil {
		d.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (d *Dispatcher) processStage(ctx context.Context, stage models.Stage) error {
	batch, err := d.tracking.Pending(ctx, stage, BatchSize)
	if err != nil {
		return fmt.Errorf("pending %s: %w", stage, err)
	}

	for i, record := range batch {
		if i > 0 {
			d.sleep(ctx)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.Deliver(ctx, record, stage)
	}
	return nil
}

// Deliver sends one stage message for one record and updates the tracking
// row. It is also the entry point for the manual re-send endpoints.
func (d *Dispatcher) Deliver(ctx context.Context, record *models.TrackingRecord, stage models.Stage) {
	state := record.Stage(stage)
	if state == nil || state.Sent {
		// Already delivered; selection raced with a concurrent send.
		return
	}

	if stage == models.StageBarcode {
		won, err := d.tracking.ClaimProcessing(ctx, record.RegistrationID)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to claim barcode lock",
				"registration_id", record.RegistrationID, "error", err)
			return
		}
		if !won {
			return
		}
	}

	err := d.send(ctx, record, stage)
	if err != nil {
		permanent := provider.IsPermanent(err)
		d.logger.ErrorContext(ctx, "send failed",
			"registration_id", record.RegistrationID, "stage", string(stage),
			"permanent", permanent, "error", err)
		if d.metrics != nil {
			d.metrics.IncrementFailed(string(stage))
		}
		if markErr := d.tracking.MarkFailed(ctx, record.RegistrationID, stage, permanent); markErr != nil {
			d.logger.ErrorContext(ctx, "failed to record send failure",
				"registration_id", record.RegistrationID, "error", markErr)
		}
		return
	}

	if err := d.tracking.MarkSent(ctx, record.RegistrationID, stage); err != nil {
		d.logger.ErrorContext(ctx, "failed to record delivery",
			"registration_id", record.RegistrationID, "stage", string(stage), "error", err)
		return
	}
	if d.metrics != nil {
		d.metrics.IncrementSent(string(stage))
	}
	if d.events != nil {
		d.events.Publish(ctx, "message_sent", map[string]any{
			"registration_id": record.RegistrationID,
			"stage":           string(stage),
		})
	}
	d.logger.InfoContext(ctx, "message delivered",
		"registration_id", record.RegistrationID, "stage", string(stage))
}

func (d *Dispatcher) send(ctx context.Context, record *models.TrackingRecord, stage models.Stage) error {
	switch stage {
	case models.StageConfirmation, models.StageChangeRequest:
		text, err := d.renderStage(ctx, stage, record.TemplateFields())
		if err != nil {
			return err
		}
		_, err = d.provider.SendText(ctx, d.provider.Address(record.Mobile), text)
		return err

	case models.StageAdmin:
		return d.sendAdmin(ctx, record)

	case models.StageBarcode:
		return d.sendBarcode(ctx, record)
	}
	return fmt.Errorf("unknown stage %q", stage)
}

// sendAdmin fans the alert out to the configured groups and direct admin
// numbers. Delivery counts as success when at least one target accepted it;
// the failure is permanent only if every target failed permanently.
func (d *Dispatcher) sendAdmin(ctx context.Context, record *models.TrackingRecord) error {
	fields := record.TemplateFields()
	if total, err := d.source.CountAll(ctx); err == nil {
		fields["total_registrations"] = fmt.Sprintf("%d", total)
	}
	if today, err := d.source.CountToday(ctx); err == nil {
		fields["today_registrations"] = fmt.Sprintf("%d", today)
	}

	text, err := d.renderStage(ctx, models.StageAdmin, fields)
	if err != nil {
		return err
	}

	current := d.settings.Get()
	targets := make([]string, 0, len(current.SelectedGroups)+len(current.AdminNumbers))
	targets = append(targets, current.SelectedGroups...)
	for _, number := range current.AdminNumbers {
		targets = append(targets, d.provider.Address(number))
	}
	if len(targets) == 0 {
		// Nothing configured; treat as delivered so the row does not churn.
		return nil
	}

	delivered := 0
	allPermanent := true
	var lastErr error
	for _, target := range targets {
		if _, err := d.provider.SendText(ctx, target, text); err != nil {
			lastErr = err
			if !provider.IsPermanent(err) {
				allPermanent = false
			}
			d.logger.WarnContext(ctx, "admin alert target failed",
				"registration_id", record.RegistrationID, "target", target, "error", err)
			continue
		}
		delivered++
	}
	if delivered > 0 {
		return nil
	}
	if allPermanent {
		return fmt.Errorf("all %d admin targets failed: %w", len(targets), lastErr)
	}
	return fmt.Errorf("all %d admin targets failed: %w", len(targets), stripPermanent(lastErr))
}

func (d *Dispatcher) sendBarcode(ctx context.Context, record *models.TrackingRecord) error {
	caption, err := d.renderStage(ctx, models.StageBarcode, record.TemplateFields())
	if err != nil {
		return err
	}

	// An unrenderable pass is a configuration problem; retries cannot fix it.
	img, err := d.pass.Render(record.RegistrationNo)
	if err != nil {
		return fmt.Errorf("render pass: %v: %w", err, sentinel.ErrPermanent)
	}

	filename := fmt.Sprintf("housing-pass-%s.png", record.RegistrationNo)
	_, err = d.provider.SendMedia(ctx, d.provider.Address(record.Mobile), img, filename, caption)
	return err
}

func (d *Dispatcher) renderStage(ctx context.Context, stage models.Stage, fields map[string]string) (string, error) {
	tmpl, err := d.templates.GetByStage(ctx, stage)
	if errors.Is(err, sentinel.ErrNotFound) {
		// A missing template never heals on its own; do not burn three
		// attempts waiting for one.
		return "", fmt.Errorf("load template %s: %w", stage, sentinel.ErrPermanent)
	}
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", stage, err)
	}
	return template.Render(tmpl.Text, fields), nil
}

// stripPermanent rewraps a mixed-outcome error so it does not classify the
// whole fan-out as permanent.
func stripPermanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s", err.Error())
}
