package registrations

import (
	"context"
	"sort"
	"sync"
	"time"

	"regnotify/internal/notify/models"
)

// InMemorySource backs unit tests and local development. Add is the only
// mutation; the notifier itself never writes registrations.
type InMemorySource struct {
	mu      sync.Mutex
	regs    map[int64]models.Registration
	created map[int64]time.Time
	now     func() time.Time
}

func NewInMemorySource() *InMemorySource {
	return &InMemorySource{
		regs:    make(map[int64]models.Registration),
		created: make(map[int64]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the wall clock; tests only.
func (s *InMemorySource) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Add inserts or replaces a registration.
func (s *InMemorySource) Add(reg models.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg.ID] = reg
	if _, ok := s.created[reg.ID]; !ok {
		s.created[reg.ID] = s.now()
	}
}

func (s *InMemorySource) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.regs))
	for id := range s.regs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *InMemorySource) ListAfter(_ context.Context, afterID int64) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var regs []models.Registration
	for _, id := range s.sortedIDs() {
		if id > afterID {
			regs = append(regs, s.regs[id])
		}
	}
	return regs, nil
}

func (s *InMemorySource) Latest(_ context.Context, limit int) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sortedIDs()
	var regs []models.Registration
	for i := len(ids) - 1; i >= 0 && len(regs) < limit; i-- {
		regs = append(regs, s.regs[ids[i]])
	}
	return regs, nil
}

func (s *InMemorySource) All(_ context.Context) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var regs []models.Registration
	for _, id := range s.sortedIDs() {
		regs = append(regs, s.regs[id])
	}
	return regs, nil
}

func (s *InMemorySource) Mobiles(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var mobiles []string
	for _, id := range s.sortedIDs() {
		mobile := s.regs[id].Mobile
		if mobile == "" {
			continue
		}
		if _, ok := seen[mobile]; ok {
			continue
		}
		seen[mobile] = struct{}{}
		mobiles = append(mobiles, mobile)
	}
	sort.Strings(mobiles)
	return mobiles, nil
}

func (s *InMemorySource) CountAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regs), nil
}

func (s *InMemorySource) CountToday(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	year, month, day := s.now().Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, s.now().Location())
	count := 0
	for id := range s.regs {
		if !s.created[id].Before(midnight) {
			count++
		}
	}
	return count, nil
}

func (s *InMemorySource) GenderCounts(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, reg := range s.regs {
		counts[reg.Gender]++
	}
	return counts, nil
}

func (s *InMemorySource) PositionCounts(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, reg := range s.regs {
		counts[reg.Position]++
	}
	return counts, nil
}
