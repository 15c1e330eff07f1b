package settings

import (
	"context"
	"sync"

	"regnotify/pkg/sentinel"
)

// InMemoryStore implements Store for unit tests and local development.
type InMemoryStore struct {
	mu      sync.Mutex
	current *Settings
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.current
	clone.SelectedGroups = append([]string(nil), s.current.SelectedGroups...)
	clone.AdminNumbers = append([]string(nil), s.current.AdminNumbers...)
	return &clone, nil
}

func (s *InMemoryStore) Save(_ context.Context, next *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *next
	clone.SelectedGroups = append([]string(nil), next.SelectedGroups...)
	clone.AdminNumbers = append([]string(nil), next.AdminNumbers...)
	s.current = &clone
	return nil
}
