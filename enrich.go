// session-scoped game metadata enrichment.
//
// one fetch per download id, ever: success and failure are both
// cached, so expanding and collapsing a row never re-issues the
// request and a flaky endpoint cannot be hammered by renders. entries
// are append-only per key; a fresh process is the only retry path.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// gameInfoResponse is the wire shape of the proxy's gameinfo endpoint.
type gameInfoResponse struct {
	GameName    string `json:"gameName"`
	AppID       int64  `json:"appId"`
	HeaderImage string `json:"headerImage"`
	Description string `json:"description"`
}

// enrichCache maps download ids to fetched metadata, single-flight.
type enrichCache struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter

	mu      sync.Mutex
	entries map[int64]*enrichmentEntry
	pending map[int64]chan struct{}
}

func newEnrichCache(baseURL string) *enrichCache {
	return &enrichCache{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		// the endpoint is shared with the dashboard proper; don't
		// let rapid expand-scrolling monopolize it.
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		entries: make(map[int64]*enrichmentEntry),
		pending: make(map[int64]chan struct{}),
	}
}

// enrichable reports whether a record qualifies for a metadata fetch:
// a steam transfer that moved bytes and carries a resolvable identity
// hint. out-of-range ids are handled separately in fetch so they can
// be logged rather than silently conflated with "not a game".
func enrichable(r *downloadRecord) bool {
	if r == nil || r.ID == nil {
		return false
	}
	if strings.ToLower(r.Service) != "steam" {
		return false
	}
	if r.TotalBytes == 0 {
		return false
	}
	return hasKnownGame(r) || r.GameAppID != nil
}

// lookup returns the cached entry for id without triggering a fetch.
func (c *enrichCache) lookup(id int64) (*enrichmentEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}

// fetch resolves the entry for a record, issuing at most one upstream
// request per id no matter how many callers race. returns nil when the
// record isn't fetchable at all (no id, wrong service, id out of the
// 32-bit range) — the caller shows the neutral placeholder.
func (c *enrichCache) fetch(ctx context.Context, r *downloadRecord) *enrichmentEntry {
	if !enrichable(r) {
		return nil
	}
	id := *r.ID
	if id < 0 || id > maxFetchableID {
		logger.Debug("skipping enrichment for out-of-range id", slog.Int64("id", id))
		return nil
	}

	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		c.mu.Unlock()
		return e
	}
	if wait, ok := c.pending[id]; ok {
		// another caller owns the request; wait for it to land.
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil
		}
		e, _ := c.lookup(id)
		return e
	}
	wait := make(chan struct{})
	c.pending[id] = wait
	c.mu.Unlock()

	entry := c.fetchRemote(ctx, id)

	c.mu.Lock()
	c.entries[id] = entry
	delete(c.pending, id)
	c.mu.Unlock()
	close(wait)

	return entry
}

// fetchRemote performs the HTTP round trip. failures come back as an
// entry with Err set: a visible, cached error state, never a retry loop.
func (c *enrichCache) fetchRemote(ctx context.Context, id int64) *enrichmentEntry {
	opID := uuid.NewString()
	log := logger.With(slog.String("op", opID), slog.Int64("id", id))

	if err := c.limiter.Wait(ctx); err != nil {
		return &enrichmentEntry{Err: fmt.Errorf("enrichment cancelled: %w", err)}
	}

	url := fmt.Sprintf("%s/api/gameinfo/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &enrichmentEntry{Err: fmt.Errorf("cannot build gameinfo request: %w", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn("gameinfo fetch failed", slog.Any("error", err))
		return &enrichmentEntry{Err: fmt.Errorf("cannot fetch game info: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("gameinfo fetch failed", slog.Int("status", resp.StatusCode))
		return &enrichmentEntry{Err: fmt.Errorf("game info endpoint returned %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &enrichmentEntry{Err: fmt.Errorf("cannot read game info: %w", err)}
	}
	var gi gameInfoResponse
	if err := json.Unmarshal(body, &gi); err != nil {
		log.Warn("gameinfo decode failed", slog.Any("error", err))
		return &enrichmentEntry{Err: fmt.Errorf("cannot decode game info: %w", err)}
	}

	log.Debug("gameinfo resolved", slog.String("game", gi.GameName))
	return &enrichmentEntry{
		GameName:    gi.GameName,
		AppID:       gi.AppID,
		HeaderImage: gi.HeaderImage,
		Description: gi.Description,
	}
}

// prepopulate synthesizes an entry from hints already on the record,
// skipping the network entirely. used when the feed embeds identifying
// details itself. an existing entry always wins: the cache is
// append-only per key.
func (c *enrichCache) prepopulate(r *downloadRecord) {
	if r.ID == nil || !hasKnownGame(r) || r.GameAppID == nil {
		return
	}
	id := *r.ID
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		return
	}
	c.entries[id] = &enrichmentEntry{
		GameName: r.GameName,
		AppID:    *r.GameAppID,
	}
}
