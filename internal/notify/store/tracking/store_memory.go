package tracking

import (
	"context"
	"sort"
	"sync"
	"time"

	"regnotify/internal/notify/models"
	"regnotify/pkg/sentinel"
)

// InMemoryStore implements Store for unit tests and local development. The
// clock is injectable so eligibility windows can be exercised without sleeping.
type InMemoryStore struct {
	mu   sync.Mutex
	rows map[int64]*models.TrackingRecord
	now  func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows: make(map[int64]*models.TrackingRecord),
		now:  time.Now,
	}
}

// SetClock overrides the wall clock; tests only.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *InMemoryStore) Upsert(_ context.Context, reg models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if row, ok := s.rows[reg.ID]; ok {
		applyRegistration(row, reg)
		row.UpdatedAt = now
		return nil
	}

	row := &models.TrackingRecord{
		ID:             int64(len(s.rows) + 1),
		RegistrationID: reg.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyRegistration(row, reg)
	s.rows[reg.ID] = row
	return nil
}

func applyRegistration(row *models.TrackingRecord, reg models.Registration) {
	row.RegistrationNo = reg.RegistrationNo
	row.Name = reg.Name
	row.Mobile = reg.Mobile
	row.Village = reg.Village
	row.State = reg.State
	row.Position = reg.Position
	row.Age = reg.Age
	row.Gender = reg.Gender
	row.MaleMembers = reg.MaleMembers
	row.FemaleMembers = reg.FemaleMembers
	row.ChildMembers = reg.ChildMembers
	row.TotalMembers = reg.TotalMembers
	row.Connected = reg.Connected
	row.Message = reg.Message
}

func (s *InMemoryStore) MaxRegistrationID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max int64
	for id := range s.rows {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (s *InMemoryStore) Pending(_ context.Context, stage models.Stage, limit int) ([]*models.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var eligible []*models.TrackingRecord
	for _, row := range s.rows {
		if s.eligible(row, stage, now) {
			eligible = append(eligible, cloneRecord(row))
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].RegistrationID < eligible[j].RegistrationID
	})
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

func (s *InMemoryStore) eligible(row *models.TrackingRecord, stage models.Stage, now time.Time) bool {
	state := row.Stage(stage)
	if state == nil || state.Sent || state.RetryCount >= models.MaxAttempts {
		return false
	}
	if state.LastAttempt != nil && now.Sub(*state.LastAttempt) <= models.AttemptCooldown {
		return false
	}
	switch stage {
	case models.StageBarcode:
		if !row.Confirmation.Sent || row.IsProcessing {
			return false
		}
		return row.Confirmation.SentAt != nil && now.Sub(*row.Confirmation.SentAt) >= models.BarcodeAfterConfirmation
	case models.StageChangeRequest:
		if !row.Confirmation.Sent {
			return false
		}
		return row.Confirmation.SentAt != nil && now.Sub(*row.Confirmation.SentAt) >= models.ChangeRequestAfterConfirmation
	}
	return true
}

func (s *InMemoryStore) MarkSent(_ context.Context, registrationID int64, stage models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[registrationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := s.now()
	state := row.Stage(stage)
	state.Sent = true
	sentAt := now
	state.SentAt = &sentAt
	state.RetryCount = 0
	if stage == models.StageBarcode {
		row.IsProcessing = false
	}
	row.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) MarkFailed(_ context.Context, registrationID int64, stage models.Stage, permanent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[registrationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := s.now()
	state := row.Stage(stage)
	if permanent {
		state.RetryCount = models.MaxAttempts
	} else {
		state.RetryCount++
	}
	attempt := now
	state.LastAttempt = &attempt
	if stage == models.StageBarcode {
		row.IsProcessing = false
	}
	row.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) ClaimProcessing(_ context.Context, registrationID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[registrationID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if row.IsProcessing {
		return false, nil
	}
	row.IsProcessing = true
	row.UpdatedAt = s.now()
	return true, nil
}

func (s *InMemoryStore) ReleaseProcessing(_ context.Context, registrationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[registrationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	row.IsProcessing = false
	row.UpdatedAt = s.now()
	return nil
}

func (s *InMemoryStore) ReleaseStale(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var released int64
	for _, row := range s.rows {
		if row.IsProcessing && now.Sub(row.UpdatedAt) > olderThan {
			row.IsProcessing = false
			row.UpdatedAt = now
			released++
		}
	}
	return released, nil
}

func (s *InMemoryStore) FindByNoOrMobile(_ context.Context, registrationNo, mobile string) (*models.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		row := s.rows[id]
		if (registrationNo != "" && row.RegistrationNo == registrationNo) ||
			(mobile != "" && row.Mobile == mobile) {
			return cloneRecord(row), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Stats(_ context.Context) (*models.SyncStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &models.SyncStats{TotalSynced: len(s.rows)}
	for _, row := range s.rows {
		if row.Confirmation.Sent {
			stats.ConfirmationsSent++
		}
		if row.Admin.Sent {
			stats.AdminAlertsSent++
		}
		if row.Barcode.Sent {
			stats.BarcodesSent++
		}
		if row.ChangeRequest.Sent {
			stats.ChangeRequestsSent++
		}
		if !row.Confirmation.Sent || !row.Admin.Sent || !row.Barcode.Sent || !row.ChangeRequest.Sent {
			stats.Pending++
		}
		if row.Confirmation.Exhausted() || row.Admin.Exhausted() ||
			row.Barcode.Exhausted() || row.ChangeRequest.Exhausted() {
			stats.PermanentlyFailed++
		}
	}
	return stats, nil
}

// Get returns a copy of a row by registration id; tests only.
func (s *InMemoryStore) Get(registrationID int64) (*models.TrackingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[registrationID]
	if !ok {
		return nil, false
	}
	return cloneRecord(row), true
}

func cloneRecord(row *models.TrackingRecord) *models.TrackingRecord {
	clone := *row
	clone.Confirmation = cloneState(row.Confirmation)
	clone.Admin = cloneState(row.Admin)
	clone.Barcode = cloneState(row.Barcode)
	clone.ChangeRequest = cloneState(row.ChangeRequest)
	return &clone
}

func cloneState(state models.StageState) models.StageState {
	if state.SentAt != nil {
		sentAt := *state.SentAt
		state.SentAt = &sentAt
	}
	if state.LastAttempt != nil {
		attempt := *state.LastAttempt
		state.LastAttempt = &attempt
	}
	return state
}
