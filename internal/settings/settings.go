// Package settings holds the operator-editable runtime settings: which chat
// groups receive admin alerts, which direct numbers do, and the pass template
// in use. Settings are cached in memory and reloaded on every save.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"regnotify/pkg/sentinel"
)

// Settings is the operator-editable configuration snapshot.
type Settings struct {
	SelectedGroups      []string `json:"selected_groups"`
	AdminNumbers        []string `json:"admin_numbers"`
	RegistrationMessage string   `json:"registration_message"`
	PassTemplatePath    string   `json:"pass_template_path"`
}

// Store persists the settings snapshot.
type Store interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}

// Service caches the current snapshot so the dispatch loop reads settings
// without a database round trip every five seconds.
type Service struct {
	store  Store
	logger *slog.Logger

	mu      sync.RWMutex
	current Settings
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger.With("component", "settings") }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reload refreshes the cache from the store. A missing row leaves the zero
// snapshot in place.
func (s *Service) Reload(ctx context.Context) error {
	loaded, err := s.store.Load(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = *loaded
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the current snapshot.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.current
	snapshot.SelectedGroups = append([]string(nil), s.current.SelectedGroups...)
	snapshot.AdminNumbers = append([]string(nil), s.current.AdminNumbers...)
	return snapshot
}

// Update persists the new snapshot and refreshes the cache.
func (s *Service) Update(ctx context.Context, next Settings) error {
	if err := s.store.Save(ctx, &next); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "settings updated",
		"groups", len(next.SelectedGroups), "admin_numbers", len(next.AdminNumbers))
	return nil
}
