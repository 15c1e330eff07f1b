package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceReloadWithEmptyStore(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	require.NoError(t, svc.Reload(context.Background()), "empty store keeps the zero snapshot")
	assert.Empty(t, svc.Get().AdminNumbers)
}

func TestServiceUpdateRefreshesCache(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := NewService(store)

	next := Settings{
		SelectedGroups: []string{"group-1@g.us"},
		AdminNumbers:   []string{"9876543210"},
	}
	require.NoError(t, svc.Update(ctx, next))

	got := svc.Get()
	assert.Equal(t, []string{"group-1@g.us"}, got.SelectedGroups)
	assert.Equal(t, []string{"9876543210"}, got.AdminNumbers)

	// A second service over the same store sees the saved snapshot.
	other := NewService(store)
	require.NoError(t, other.Reload(ctx))
	assert.Equal(t, got.AdminNumbers, other.Get().AdminNumbers)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore())
	require.NoError(t, svc.Update(ctx, Settings{AdminNumbers: []string{"111"}}))

	got := svc.Get()
	got.AdminNumbers[0] = "mutated"
	assert.Equal(t, []string{"111"}, svc.Get().AdminNumbers)
}
