// Package broadcast sends one-off bulk messages to groups, every registrant,
// or a custom recipient list. Broadcasts are best-effort: a failed recipient
// is reported, never retried.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"regnotify/internal/platform/metrics"
	"regnotify/internal/provider"
	"regnotify/internal/registrations"
	"regnotify/internal/settings"
)

// Recipient type selectors.
const (
	RecipientGroups = "groups"
	RecipientAll    = "all"
	RecipientCustom = "custom"
)

// Jitter between consecutive broadcast sends, wider than the dispatch gap
// because broadcasts can span thousands of recipients.
const (
	minSendGap = 1 * time.Second
	maxSendGap = 2 * time.Second
)

// Request describes one broadcast.
type Request struct {
	Text          string
	Media         []byte
	MediaName     string
	RecipientType string
	Recipients    []string
}

// RecipientResult is the outcome for a single target.
type RecipientResult struct {
	Target string `json:"target"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Result summarizes a finished broadcast.
type Result struct {
	Total   int               `json:"total"`
	Sent    int               `json:"sent"`
	Failed  int               `json:"failed"`
	Status  string            `json:"status"`
	Results []RecipientResult `json:"results"`
}

// Sleeper pauses between sends. Injectable so tests run without waiting.
type Sleeper func(ctx context.Context)

// Publisher pushes per-recipient progress to the admin console.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any)
}

type Service struct {
	provider provider.Provider
	source   registrations.Source
	settings *settings.Service
	history  HistoryStore
	metrics  *metrics.Metrics
	events   Publisher
	logger   *slog.Logger
	sleep    Sleeper
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger.With("component", "broadcast") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithSleeper(sleep Sleeper) Option {
	return func(s *Service) { s.sleep = sleep }
}

func New(
	prov provider.Provider,
	source registrations.Source,
	settingsSvc *settings.Service,
	history HistoryStore,
	opts ...Option,
) *Service {
	s := &Service{
		provider: prov,
		source:   source,
		settings: settingsSvc,
		history:  history,
		logger:   slog.Default(),
		sleep: func(ctx context.Context) {
			gap := minSendGap + time.Duration(rand.Int63n(int64(maxSendGap-minSendGap)))
			select {
			case <-ctx.Done():
			case <-time.After(gap):
			}
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send runs the broadcast synchronously and returns the per-recipient
// outcome. Context cancellation stops the remaining sends; what was already
// delivered stays delivered.
func (s *Service) Send(ctx context.Context, req Request) (*Result, error) {
	if req.Text == "" && len(req.Media) == 0 {
		return nil, fmt.Errorf("broadcast needs a message or media")
	}

	targets, err := s.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no recipients for type %q", req.RecipientType)
	}

	result := &Result{Total: len(targets)}
	for i, target := range targets {
		if i > 0 {
			s.sleep(ctx)
		}
		if ctx.Err() != nil {
			break
		}

		sendErr := s.sendOne(ctx, target, req)
		outcome := RecipientResult{Target: target, OK: sendErr == nil}
		if sendErr != nil {
			outcome.Error = sendErr.Error()
			result.Failed++
			if s.metrics != nil {
				s.metrics.IncrementBroadcast("failed")
			}
			s.logger.WarnContext(ctx, "broadcast recipient failed",
				"target", target, "error", sendErr)
		} else {
			result.Sent++
			if s.metrics != nil {
				s.metrics.IncrementBroadcast("sent")
			}
		}
		result.Results = append(result.Results, outcome)

		if s.events != nil {
			s.events.Publish(ctx, "broadcast_progress", map[string]any{
				"current": i + 1,
				"total":   len(targets),
				"target":  target,
				"ok":      outcome.OK,
			})
		}
	}

	result.Status = statusFor(result)
	record := &SentMessage{
		Text:          req.Text,
		MediaName:     req.MediaName,
		RecipientType: req.RecipientType,
		Recipients:    targets,
		Status:        result.Status,
	}
	if err := s.history.Record(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "failed to record broadcast", "error", err)
	}

	s.logger.InfoContext(ctx, "broadcast finished",
		"type", req.RecipientType, "total", result.Total,
		"sent", result.Sent, "failed", result.Failed)
	return result, nil
}

func (s *Service) resolveTargets(ctx context.Context, req Request) ([]string, error) {
	switch req.RecipientType {
	case RecipientGroups:
		return s.settings.Get().SelectedGroups, nil

	case RecipientAll:
		mobiles, err := s.source.Mobiles(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve registrant mobiles: %w", err)
		}
		targets := make([]string, 0, len(mobiles))
		for _, mobile := range mobiles {
			targets = append(targets, s.provider.Address(mobile))
		}
		return targets, nil

	case RecipientCustom:
		targets := make([]string, 0, len(req.Recipients))
		for _, mobile := range req.Recipients {
			mobile = strings.TrimSpace(mobile)
			if mobile == "" {
				continue
			}
			if !validMobile(mobile) {
				s.logger.WarnContext(ctx, "skipping invalid custom recipient", "recipient", mobile)
				continue
			}
			targets = append(targets, s.provider.Address(mobile))
		}
		return targets, nil
	}
	return nil, fmt.Errorf("unknown recipient type %q", req.RecipientType)
}

// validMobile accepts exactly ten digits, the national format the provider
// address scheme expects.
func validMobile(mobile string) bool {
	if len(mobile) != 10 {
		return false
	}
	for _, r := range mobile {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) sendOne(ctx context.Context, target string, req Request) error {
	if len(req.Media) > 0 {
		_, err := s.provider.SendMedia(ctx, target, req.Media, req.MediaName, req.Text)
		return err
	}
	_, err := s.provider.SendText(ctx, target, req.Text)
	return err
}

func statusFor(result *Result) string {
	switch {
	case result.Failed == 0:
		return "completed"
	case result.Sent == 0:
		return "failed"
	default:
		return "partial"
	}
}
