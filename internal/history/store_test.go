package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"czreality/server/internal/models"
)

func intPtr(v int) *int { return &v }

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	store, err := NewSqliteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadEmptyStore(t *testing.T) {
	store := newTestStore(t)

	history, err := store.Load()
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	firstSeen := time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)

	saved := models.HistoryStore{
		"sreality_domy_1":     {Price: intPtr(5_000_000), FirstSeenAt: firstSeen},
		"bezrealitky_byty_42": {Price: nil, FirstSeenAt: firstSeen.Add(time.Hour)},
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	entry := loaded["sreality_domy_1"]
	require.NotNil(t, entry.Price)
	assert.Equal(t, 5_000_000, *entry.Price)
	assert.True(t, entry.FirstSeenAt.Equal(firstSeen))

	assert.Nil(t, loaded["bezrealitky_byty_42"].Price)
}

func TestSaveOverwritesWholeMapping(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Save(models.HistoryStore{
		"old_id": {Price: intPtr(1), FirstSeenAt: now},
	}))
	require.NoError(t, store.Save(models.HistoryStore{
		"new_id": {Price: intPtr(2), FirstSeenAt: now},
	}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	_, ok := loaded["new_id"]
	assert.True(t, ok)
}
