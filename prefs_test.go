package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) (*prefStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs.db")
	s, err := openPrefStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestDefaultsOnFreshStore(t *testing.T) {
	s, _ := tempStore(t)

	cfg := s.config()
	assert.False(t, cfg.ShowZeroBytes)
	assert.True(t, cfg.ShowSmallFiles)
	assert.False(t, cfg.HideLocalhost)
	assert.False(t, cfg.HideUnknownGames)
	assert.Equal(t, "all", cfg.SelectedService)
	assert.False(t, cfg.GroupGames)
	assert.Equal(t, 50, cfg.ItemsPerPage)
	assert.Equal(t, sortLatest, cfg.SortOrder)
	assert.Equal(t, viewCompact, cfg.ViewMode)
}

func TestWriteThroughRoundTrip(t *testing.T) {
	s, path := tempStore(t)

	s.setBool(prefShowZeroBytes, true)
	s.setBool(prefGroupGames, true)
	s.set(prefSelectedService, "steam")
	s.set(prefSortOrder, string(sortLargest))
	s.set(prefViewMode, string(viewNormal))
	s.setItemsPerPage(250)
	require.NoError(t, s.Close())

	// a fresh session reads everything back at construction
	reopened, err := openPrefStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	cfg := reopened.config()
	assert.True(t, cfg.ShowZeroBytes)
	assert.True(t, cfg.GroupGames)
	assert.Equal(t, "steam", cfg.SelectedService)
	assert.Equal(t, sortLargest, cfg.SortOrder)
	assert.Equal(t, viewNormal, cfg.ViewMode)
	assert.Equal(t, 250, cfg.ItemsPerPage)
}

func TestUnlimitedPageRoundTrip(t *testing.T) {
	s, path := tempStore(t)

	s.setItemsPerPage(unlimitedPageSize)
	require.NoError(t, s.Close())

	reopened, err := openPrefStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, unlimitedPageSize, reopened.config().ItemsPerPage)

	// stored as the literal string, not a sentinel number
	var raw string
	err = reopened.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, prefItemsPerPage).Scan(&raw)
	require.NoError(t, err)
	assert.Equal(t, "unlimited", raw)
}

func TestMalformedValuesFallBack(t *testing.T) {
	s, path := tempStore(t)

	_, err := s.db.Exec(`INSERT INTO prefs (key, value) VALUES
		(?, 'yes'), (?, '-3'), (?, 'sideways'), (?, 'huge')`,
		prefShowZeroBytes, prefItemsPerPage, prefSortOrder, prefViewMode)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := openPrefStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	cfg := reopened.config()
	assert.False(t, cfg.ShowZeroBytes)
	assert.Equal(t, 50, cfg.ItemsPerPage)
	assert.Equal(t, sortLatest, cfg.SortOrder)
	assert.Equal(t, viewCompact, cfg.ViewMode)
}

func TestLastWriterWins(t *testing.T) {
	s, _ := tempStore(t)

	s.set(prefSelectedService, "epic")
	s.set(prefSelectedService, "wsus")
	assert.Equal(t, "wsus", s.config().SelectedService)

	var raw string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, prefSelectedService).Scan(&raw)
	require.NoError(t, err)
	assert.Equal(t, "wsus", raw)
}
