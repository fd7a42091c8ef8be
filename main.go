package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

// logger is the process-wide structured logger. a TUI owns stdout, so
// it writes to a file; until main wires it up it discards.
var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func main() {
	_ = godotenv.Load()
	rc := loadRuntimeConfig()
	setupLogger(rc.logFile)

	// `cachetop serve` — mock proxy API for demos and scripting
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		port := fs.Int("port", 8080, "listen port")
		_ = fs.Parse(os.Args[2:])
		serveCommand(*port)
		return
	}

	// `cachetop downloads` — one-shot transformed list as JSON
	if len(os.Args) > 1 && os.Args[1] == "downloads" {
		fs := flag.NewFlagSet("downloads", flag.ExitOnError)
		mock := fs.Bool("mock", false, "use the synthetic feed")
		_ = fs.Parse(os.Args[2:])
		downloadsCommand(rc, *mock)
		return
	}

	// default: launch TUI
	mock := flag.Bool("mock", false, "use the synthetic feed instead of the API")
	flag.Parse()

	// clean exit on SIGTERM/SIGHUP so alt screen gets restored
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigCh
		os.Exit(0)
	}()

	prefs, err := openPrefStore(prefsPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer prefs.Close()

	cache := newEnrichCache(rc.apiURL)

	p := tea.NewProgram(newTUIModel(rc, prefs, cache, *mock), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger points the package logger at the log file. logging is
// best effort: if the file can't be opened the logger keeps discarding.
func setupLogger(path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// downloadsCommand prints the transformed download list as JSON,
// using the same stored preferences the TUI would.
func downloadsCommand(rc runtimeConfig, mock bool) {
	prefs, err := openPrefStore(prefsPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer prefs.Close()

	var records []downloadRecord
	if mock {
		records = synthDownloads(time.Now(), 1200, 42)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		records, err = fetchDownloads(ctx, rc.apiURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	items := transformDownloads(records, prefs.config())

	var results []map[string]any
	for _, it := range items {
		if g := it.group; g != nil {
			results = append(results, map[string]any{
				"type":             "group",
				"id":               g.ID,
				"name":             g.Name,
				"count":            g.Count,
				"clients":          len(g.Clients),
				"total_bytes":      g.TotalBytes,
				"cache_hit_bytes":  g.CacheHitBytes,
				"cache_miss_bytes": g.CacheMissBytes,
				"first_seen":       g.FirstSeen,
				"last_seen":        g.LastSeen,
			})
			continue
		}
		r := it.record
		entry := map[string]any{
			"type":             "download",
			"key":              recordKey(r),
			"service":          r.Service,
			"client_ip":        r.ClientIP,
			"total_bytes":      r.TotalBytes,
			"cache_hit_bytes":  r.CacheHitBytes,
			"cache_miss_bytes": r.CacheMissBytes,
			"start_time":       r.StartTime,
			"active":           r.isActive(),
		}
		if r.GameName != "" {
			entry["game_name"] = r.GameName
		}
		results = append(results, entry)
	}

	out, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(out))
}
