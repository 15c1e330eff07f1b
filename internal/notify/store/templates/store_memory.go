package templates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"regnotify/internal/notify/models"
	"regnotify/internal/notify/template"
	"regnotify/pkg/sentinel"
)

// InMemoryStore implements Store for unit tests and local development.
type InMemoryStore struct {
	mu     sync.Mutex
	byType map[models.Stage]*models.Template
	nextID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byType: make(map[models.Stage]*models.Template)}
}

func (s *InMemoryStore) GetByStage(_ context.Context, stage models.Stage) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpl, ok := s.byType[stage]
	if !ok || !tmpl.IsActive {
		return nil, sentinel.ErrNotFound
	}
	clone := *tmpl
	return &clone, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tmpls []*models.Template
	for _, stage := range models.Stages {
		if tmpl, ok := s.byType[stage]; ok {
			clone := *tmpl
			tmpls = append(tmpls, &clone)
		}
	}
	return tmpls, nil
}

func (s *InMemoryStore) Save(_ context.Context, stage models.Stage, name, text string) error {
	if !stage.Valid() {
		return fmt.Errorf("unknown stage %q: %w", stage, sentinel.ErrNotFound)
	}
	if err := template.Validate(text, knownFieldsFor(stage)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if tmpl, ok := s.byType[stage]; ok {
		tmpl.Name = name
		tmpl.Text = text
		tmpl.IsActive = true
		tmpl.UpdatedAt = now
		return nil
	}
	s.nextID++
	s.byType[stage] = &models.Template{
		ID:        s.nextID,
		Name:      name,
		Stage:     stage,
		Text:      text,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}
