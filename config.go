// paths, constants, and runtime configuration from the environment.

package main

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// one materializer chunk per scheduler tick; 50 balances paint
	// responsiveness against total reveal latency.
	materializeChunkSize = 50
	// below this many items a single emission is cheaper than chunking.
	materializeThreshold = 100

	// the window renderer engages at this item count (or whenever the
	// page size is unlimited); small lists render directly.
	virtualizeThreshold = 200
	overscanItems       = 5

	smallFileBytes = 1 << 20 // 1 MiB
	maxFetchableID = 1<<31 - 1
)

// runtimeConfig holds the env-derived settings. loaded once in main
// after godotenv has had a chance to populate the environment.
type runtimeConfig struct {
	apiURL       string
	pollInterval time.Duration
	logFile      string
}

func loadRuntimeConfig() runtimeConfig {
	cfg := runtimeConfig{
		apiURL:       "http://localhost:8080",
		pollInterval: 5 * time.Second,
		logFile:      filepath.Join(dataDir(), "cachetop.log"),
	}
	if v := os.Getenv("CACHETOP_API_URL"); v != "" {
		cfg.apiURL = v
	}
	if v := os.Getenv("CACHETOP_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.pollInterval = d
		}
	}
	if v := os.Getenv("CACHETOP_LOG_FILE"); v != "" {
		cfg.logFile = v
	}
	return cfg
}

// dataDir returns cachetop's data directory. respects XDG_DATA_HOME.
func dataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "cachetop")
}

// prefsPath returns the path to the preference database.
func prefsPath() string {
	return filepath.Join(dataDir(), "prefs.db")
}

// sortOrder enumerates the supported orderings of the downloads view.
type sortOrder string

const (
	sortLatest   sortOrder = "latest"
	sortOldest   sortOrder = "oldest"
	sortLargest  sortOrder = "largest"
	sortSmallest sortOrder = "smallest"
	sortService  sortOrder = "service"
)

// sortCycle defines the order the </> keys cycle through.
var sortCycle = []sortOrder{sortLatest, sortOldest, sortLargest, sortSmallest, sortService}

// viewMode selects the per-row height class.
type viewMode string

const (
	viewCompact viewMode = "compact"
	viewNormal  viewMode = "normal"
)

// knownServices is the selector cycle for the service filter.
// "all" disables the filter.
var knownServices = []string{"all", "steam", "epic", "origin", "blizzard", "riot", "wsus", "localhost"}

// grid column widths (content, not including gap)
const (
	colService = 9  // "blizzard" fits
	colClient  = 15 // dotted quad
	colBytes   = 10 // "984.5 MiB"
	colHit     = 7  // "100.0%"
	colTime    = 8  // "15:04:05"
	colGap     = 2  // space between columns
)
