// Package stats aggregates the dashboard numbers from the registration source
// and the delivery tracking store.
package stats

import (
	"context"
	"fmt"

	"regnotify/internal/notify/models"
	"regnotify/internal/notify/store/tracking"
	"regnotify/internal/registrations"
)

// Overview is the dashboard payload.
type Overview struct {
	Total         int               `json:"total"`
	Today         int               `json:"today"`
	GenderStats   map[string]int    `json:"genderStats"`
	PositionStats map[string]int    `json:"positionStats"`
	SyncStats     *models.SyncStats `json:"syncStats"`
}

type Service struct {
	source   registrations.Source
	tracking tracking.Store
}

func New(source registrations.Source, trackingStore tracking.Store) *Service {
	return &Service{source: source, tracking: trackingStore}
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	total, err := s.source.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	today, err := s.source.CountToday(ctx)
	if err != nil {
		return nil, fmt.Errorf("count today: %w", err)
	}
	genders, err := s.source.GenderCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("gender counts: %w", err)
	}
	positions, err := s.source.PositionCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("position counts: %w", err)
	}
	syncStats, err := s.tracking.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync stats: %w", err)
	}

	return &Overview{
		Total:         total,
		Today:         today,
		GenderStats:   genders,
		PositionStats: positions,
		SyncStats:     syncStats,
	}, nil
}
