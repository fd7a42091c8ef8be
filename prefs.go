// sqlite-backed preference store.
//
// one row per preference key, values stored as strings ("true",
// "false", decimal integers, or the literal "unlimited") so the
// schema never changes when a field does. all keys are read once at
// construction; every set writes through immediately and
// independently — last writer wins, no transaction needed.

package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// preference keys, one per pipeline option.
const (
	prefShowZeroBytes    = "show_zero_bytes"
	prefShowSmallFiles   = "show_small_files"
	prefHideLocalhost    = "hide_localhost"
	prefHideUnknownGames = "hide_unknown_games"
	prefSelectedService  = "selected_service"
	prefGroupGames       = "group_games"
	prefItemsPerPage     = "items_per_page"
	prefSortOrder        = "sort_order"
	prefViewMode         = "view_mode"
)

// unlimitedPageSize marks an itemsPerPage of "unlimited". any
// non-positive value means no truncation.
const unlimitedPageSize = -1

// pipelineConfig is the transform stage's configuration snapshot.
type pipelineConfig struct {
	ShowZeroBytes    bool
	ShowSmallFiles   bool
	HideLocalhost    bool
	HideUnknownGames bool
	SelectedService  string // lowercase service name, or "all"
	GroupGames       bool
	ItemsPerPage     int // unlimitedPageSize for no limit
	SortOrder        sortOrder
	ViewMode         viewMode
}

func defaultPipelineConfig() pipelineConfig {
	return pipelineConfig{
		ShowZeroBytes:    false,
		ShowSmallFiles:   true,
		HideLocalhost:    false,
		HideUnknownGames: false,
		SelectedService:  "all",
		GroupGames:       false,
		ItemsPerPage:     50,
		SortOrder:        sortLatest,
		ViewMode:         viewCompact,
	}
}

// prefStore persists the pipeline configuration across sessions.
type prefStore struct {
	db  *sql.DB
	cfg pipelineConfig
}

// openPrefStore opens (creating if needed) the preference database at
// path and reads every stored key into an in-memory snapshot.
// unrecognized keys are ignored; unparseable values fall back to the
// defaults, logged.
func openPrefStore(path string) (*prefStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create pref dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("cannot open pref db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create prefs table: %w", err)
	}

	s := &prefStore{db: db, cfg: defaultPipelineConfig()}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *prefStore) Close() error {
	return s.db.Close()
}

// config returns the current snapshot. value type, safe to hand to the
// pure transform stage.
func (s *prefStore) config() pipelineConfig {
	return s.cfg
}

func (s *prefStore) loadAll() error {
	rows, err := s.db.Query(`SELECT key, value FROM prefs`)
	if err != nil {
		return fmt.Errorf("cannot read prefs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		s.apply(key, value)
	}
	return rows.Err()
}

// apply folds one stored key/value into the snapshot.
func (s *prefStore) apply(key, value string) {
	switch key {
	case prefShowZeroBytes:
		s.cfg.ShowZeroBytes = parseBoolPref(key, value, false)
	case prefShowSmallFiles:
		s.cfg.ShowSmallFiles = parseBoolPref(key, value, true)
	case prefHideLocalhost:
		s.cfg.HideLocalhost = parseBoolPref(key, value, false)
	case prefHideUnknownGames:
		s.cfg.HideUnknownGames = parseBoolPref(key, value, false)
	case prefSelectedService:
		if value != "" {
			s.cfg.SelectedService = value
		}
	case prefGroupGames:
		s.cfg.GroupGames = parseBoolPref(key, value, false)
	case prefItemsPerPage:
		if value == "unlimited" {
			s.cfg.ItemsPerPage = unlimitedPageSize
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			logger.Warn("ignoring malformed preference", slog.String("key", key), slog.String("value", value))
			return
		}
		s.cfg.ItemsPerPage = n
	case prefSortOrder:
		switch sortOrder(value) {
		case sortLatest, sortOldest, sortLargest, sortSmallest, sortService:
			s.cfg.SortOrder = sortOrder(value)
		default:
			logger.Warn("ignoring malformed preference", slog.String("key", key), slog.String("value", value))
		}
	case prefViewMode:
		switch viewMode(value) {
		case viewCompact, viewNormal:
			s.cfg.ViewMode = viewMode(value)
		default:
			logger.Warn("ignoring malformed preference", slog.String("key", key), slog.String("value", value))
		}
	}
}

func parseBoolPref(key, value string, fallback bool) bool {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	logger.Warn("ignoring malformed preference", slog.String("key", key), slog.String("value", value))
	return fallback
}

// set writes one key through to disk and updates the snapshot. errors
// are logged, not returned: a failed preference write must never take
// down the view.
func (s *prefStore) set(key, value string) {
	s.apply(key, value)
	if _, err := s.db.Exec(
		`INSERT INTO prefs (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value); err != nil {
		logger.Error("cannot persist preference",
			slog.String("key", key), slog.String("value", value), slog.Any("error", err))
	}
}

func (s *prefStore) setBool(key string, v bool) {
	s.set(key, strconv.FormatBool(v))
}

func (s *prefStore) setItemsPerPage(n int) {
	if n <= 0 {
		s.set(prefItemsPerPage, "unlimited")
		return
	}
	s.set(prefItemsPerPage, strconv.Itoa(n))
}
