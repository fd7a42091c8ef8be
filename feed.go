// input feed: REST polling against the proxy API and the synthetic
// in-process generator used by -mock.
//
// each refresh is a full replacement of the record list, never a
// delta. a malformed payload degrades to an empty list with a log
// line — the feed is presentation glue, not a correctness path.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// downloadWire is the feed's JSON shape for one record.
type downloadWire struct {
	ID             *int64     `json:"id,omitempty"`
	Service        string     `json:"service"`
	ClientIP       string     `json:"clientIp"`
	TotalBytes     int64      `json:"totalBytes"`
	CacheHitBytes  int64      `json:"cacheHitBytes"`
	CacheMissBytes int64      `json:"cacheMissBytes"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	GameName       string     `json:"gameName,omitempty"`
	GameAppID      *int64     `json:"gameAppId,omitempty"`
}

type downloadsPayload struct {
	Downloads []downloadWire `json:"downloads"`
}

func (w downloadWire) toRecord() downloadRecord {
	return downloadRecord{
		ID:             w.ID,
		Service:        normalizeService(w.Service),
		ClientIP:       w.ClientIP,
		TotalBytes:     w.TotalBytes,
		CacheHitBytes:  w.CacheHitBytes,
		CacheMissBytes: w.CacheMissBytes,
		StartTime:      w.StartTime,
		EndTime:        w.EndTime,
		GameName:       w.GameName,
		GameAppID:      w.GameAppID,
	}
}

func recordToWire(r downloadRecord) downloadWire {
	return downloadWire{
		ID:             r.ID,
		Service:        r.Service,
		ClientIP:       r.ClientIP,
		TotalBytes:     r.TotalBytes,
		CacheHitBytes:  r.CacheHitBytes,
		CacheMissBytes: r.CacheMissBytes,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		GameName:       r.GameName,
		GameAppID:      r.GameAppID,
	}
}

// decodeDownloads parses a feed body. malformed input yields an empty
// list, logged, never an error to the caller's render path.
func decodeDownloads(body []byte) []downloadRecord {
	var payload downloadsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn("malformed downloads payload, treating as empty", slog.Any("error", err))
		return nil
	}
	records := make([]downloadRecord, 0, len(payload.Downloads))
	for _, w := range payload.Downloads {
		records = append(records, w.toRecord())
	}
	return records
}

// fetchDownloads performs one poll of the proxy's downloads endpoint.
func fetchDownloads(ctx context.Context, apiURL string) ([]downloadRecord, error) {
	url := apiURL + "/api/downloads"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot build downloads request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch downloads: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloads endpoint returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("cannot read downloads body: %w", err)
	}
	return decodeDownloads(body), nil
}

// -- synthetic feed --

// mockGames are the identified titles the generator hands out. the
// sentinel entries exercise the unknown-game filter the same way a
// real unresolved depot would.
var mockGames = []struct {
	name  string
	appID int64
}{
	{"Half-Life", 70},
	{"Portal 2", 620},
	{"Counter-Strike 2", 730},
	{"Team Fortress 2", 440},
	{"Dota 2", 570},
	{"Baldur's Gate 3", 1086940},
	{"Unknown Steam Game", 0},
	{"Steam App 228980", 228980},
}

var mockServices = []string{"steam", "epic", "origin", "blizzard", "riot", "wsus"}

// synthDownloads generates a deterministic record list: same seed and
// count, same records. ids are deliberately absent — synthetic records
// are not enrichable over the network, matching a mock/offline source.
func synthDownloads(now time.Time, n int, seed int64) []downloadRecord {
	rng := rand.New(rand.NewSource(seed))
	records := make([]downloadRecord, 0, n)

	for i := 0; i < n; i++ {
		service := mockServices[rng.Intn(len(mockServices))]
		clientIP := fmt.Sprintf("172.16.1.%d", 10+rng.Intn(40))
		if rng.Intn(20) == 0 {
			clientIP = "127.0.0.1"
		}

		start := now.Add(-time.Duration(rng.Intn(6*3600)) * time.Second)
		r := downloadRecord{
			Service:   service,
			ClientIP:  clientIP,
			StartTime: start,
		}

		// roughly one in six transfers is a zero-byte metadata poll
		if rng.Intn(6) != 0 {
			r.TotalBytes = int64(rng.Intn(4<<30-1)) + 1
			hit := int64(float64(r.TotalBytes) * rng.Float64())
			r.CacheHitBytes = hit
			r.CacheMissBytes = r.TotalBytes - hit
		}

		if service == "steam" && r.TotalBytes > 0 {
			g := mockGames[rng.Intn(len(mockGames))]
			r.GameName = g.name
			if g.appID > 0 {
				appID := g.appID
				r.GameAppID = &appID
			}
		}

		// most transfers have finished; the rest are in flight
		if rng.Intn(5) != 0 {
			end := start.Add(time.Duration(30+rng.Intn(1800)) * time.Second)
			r.EndTime = &end
		}

		records = append(records, r)
	}
	return records
}
