package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regnotify/internal/notify/models"
	"regnotify/internal/notify/store/tracking"
	"regnotify/internal/registrations"
)

func newFixture() (*registrations.InMemorySource, *tracking.InMemoryStore, *Service) {
	source := registrations.NewInMemorySource()
	store := tracking.NewInMemoryStore()
	svc := New(source, store, nil)
	return source, store, svc
}

func reg(id int64, name string) models.Registration {
	return models.Registration{
		ID:             id,
		RegistrationNo: "REG-" + name,
		Name:           name,
		Mobile:         "9000000000",
		TotalMembers:   2,
	}
}

func TestRunSyncsNewRegistrations(t *testing.T) {
	ctx := context.Background()
	source, store, svc := newFixture()

	source.Add(reg(1, "Asha"))
	source.Add(reg(2, "Bharat"))

	synced, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	max, err := store.MaxRegistrationID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), max)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	source, store, svc := newFixture()
	source.Add(reg(1, "Asha"))

	_, err := svc.Run(ctx)
	require.NoError(t, err)

	synced, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, synced, "nothing past the watermark means nothing to sync")

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSynced)
}

func TestRunResumesFromWatermark(t *testing.T) {
	ctx := context.Background()
	source, store, svc := newFixture()
	source.Add(reg(1, "Asha"))

	_, err := svc.Run(ctx)
	require.NoError(t, err)

	// Mark the first row sent, then add a later registration. The next run
	// must pick up only the new row and leave the first row's state alone.
	require.NoError(t, store.MarkSent(ctx, 1, models.StageConfirmation))
	source.Add(reg(2, "Bharat"))

	synced, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	row, ok := store.Get(1)
	require.True(t, ok)
	assert.True(t, row.Confirmation.Sent)
}

func TestRunEmptySource(t *testing.T) {
	_, _, svc := newFixture()
	synced, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, synced)
}
