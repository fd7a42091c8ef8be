// HTTP server mode: a self-contained mock of the proxy API.
//
// serves the same wire shapes the TUI polls (/api/downloads and
// /api/gameinfo/{id}) from the synthetic generator, so the dashboard,
// the downloads subcommand, and integration scripts all have an
// upstream without a running cache proxy.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// serveCommand starts the mock proxy API.
func serveCommand(port int) {
	mock := newMockAPI()

	http.HandleFunc("/api/downloads", mock.handleDownloads)
	http.HandleFunc("/api/gameinfo/", mock.handleGameInfo)
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("cachetop serve on %s\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// mockAPI serves synthetic downloads, re-rolled each minute so a
// polling TUI sees the list actually change.
type mockAPI struct{}

func newMockAPI() *mockAPI {
	return &mockAPI{}
}

// currentDownloads generates this minute's record list and assigns
// ids, which the in-process generator deliberately leaves out. every
// third steam record keeps only its app id so the gameinfo endpoint
// still gets exercised alongside the pre-population path.
func (a *mockAPI) currentDownloads(now time.Time) []downloadRecord {
	seed := now.Unix() / 60
	records := synthDownloads(now, 250, seed)
	for i := range records {
		id := int64(i + 1)
		records[i].ID = &id
		if records[i].GameAppID != nil && i%3 == 0 {
			records[i].GameName = ""
		}
	}
	return records
}

func (a *mockAPI) handleDownloads(w http.ResponseWriter, r *http.Request) {
	records := a.currentDownloads(time.Now())
	wires := make([]downloadWire, len(records))
	for i, rec := range records {
		wires[i] = recordToWire(rec)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(downloadsPayload{Downloads: wires})
}

func (a *mockAPI) handleGameInfo(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/gameinfo/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	for _, rec := range a.currentDownloads(time.Now()) {
		if rec.ID == nil || *rec.ID != id || rec.GameAppID == nil {
			continue
		}
		name := rec.GameName
		if name == "" {
			// the record whose name was stripped to force a fetch
			name = fmt.Sprintf("Steam App %d", *rec.GameAppID)
			for _, g := range mockGames {
				if g.appID == *rec.GameAppID {
					name = g.name
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(gameInfoResponse{
			GameName:    name,
			AppID:       *rec.GameAppID,
			HeaderImage: fmt.Sprintf("https://cdn.example/apps/%d/header.jpg", *rec.GameAppID),
			Description: fmt.Sprintf("%s via steam, app %d", name, *rec.GameAppID),
		})
		return
	}

	http.Error(w, "not found", http.StatusNotFound)
}
