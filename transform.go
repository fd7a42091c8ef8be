// the filter/group/sort transform.
//
// pure: same records + same config always produce the same display
// list, and the input slice is never mutated. the TUI re-runs this on
// every feed refresh and on every preference change.

package main

import (
	"cmp"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// unknownGamePattern matches the generic placeholder the proxy emits
// when it saw a depot it could not resolve, e.g. "Steam App 12345".
var unknownGamePattern = regexp.MustCompile(`^[A-Za-z]+ App \d+$`)

// isUnknownGameName reports whether name is one of the unknown-game
// sentinels. an absent name is not "unknown" — only a name the source
// tried and failed to resolve is.
func isUnknownGameName(name string) bool {
	if name == "" {
		return false
	}
	return name == "Unknown Steam Game" || unknownGamePattern.MatchString(name)
}

// hasKnownGame reports whether the record carries a resolvable game
// identity.
func hasKnownGame(r *downloadRecord) bool {
	return r.GameName != "" && !isUnknownGameName(r.GameName)
}

// normalizeService canonicalizes a service label: lowercase, loopback
// variants collapsed to "localhost", bare IP addresses to "ip-address".
// one misconfigured host must not fan out into per-IP buckets the
// selector can never reach.
func normalizeService(service string) string {
	s := strings.ToLower(strings.TrimSpace(service))
	if s == "localhost" || s == "127" || strings.HasPrefix(s, "127.") {
		return "localhost"
	}
	if strings.Contains(s, ".") &&
		strings.ContainsAny(s, "0123456789") &&
		strings.Trim(s, "0123456789.") == "" {
		return "ip-address"
	}
	return s
}

// recordKey derives a stable display identity for a record. records
// from the live feed have ids; synthetic ones are keyed by their
// observable fields instead.
func recordKey(r *downloadRecord) string {
	if r.ID != nil {
		return fmt.Sprintf("dl-%d", *r.ID)
	}
	return fmt.Sprintf("dl-%s-%s-%d", r.Service, r.ClientIP, r.StartTime.UnixMilli())
}

// transformDownloads applies the configured filter chain, optional
// grouping, sorting, and the page limit. filters are AND-composed in
// a fixed order so toggling one never reorders the effect of another.
func transformDownloads(records []downloadRecord, cfg pipelineConfig) []displayItem {
	filtered := filterDownloads(records, cfg)

	var items []displayItem
	if cfg.GroupGames {
		items = groupDownloads(filtered, cfg.SortOrder)
	} else {
		sortRecords(filtered, cfg.SortOrder)
		items = make([]displayItem, len(filtered))
		for i := range filtered {
			items[i] = displayItem{record: &filtered[i]}
		}
	}

	if cfg.ItemsPerPage > 0 && len(items) > cfg.ItemsPerPage {
		items = items[:cfg.ItemsPerPage]
	}
	return items
}

// filterDownloads returns the surviving records, copied out of the
// input slice so later sorting never touches the caller's data. each
// copy carries the normalized service name, so grouping, sorting, and
// display all see canonical labels.
func filterDownloads(records []downloadRecord, cfg pipelineConfig) []downloadRecord {
	service := normalizeService(cfg.SelectedService)

	var out []downloadRecord
	for _, r := range records {
		r.Service = normalizeService(r.Service)
		if !cfg.ShowZeroBytes && r.TotalBytes == 0 {
			continue
		}
		if !cfg.ShowSmallFiles && r.TotalBytes > 0 && r.TotalBytes < smallFileBytes {
			continue
		}
		if cfg.HideLocalhost &&
			(r.ClientIP == "127.0.0.1" || r.ClientIP == "::1" || r.Service == "localhost") {
			continue
		}
		if cfg.HideUnknownGames && isUnknownGameName(r.GameName) {
			continue
		}
		if service != "" && service != "all" && r.Service != service {
			continue
		}
		out = append(out, r)
	}
	return out
}

// sortRecords stably sorts records in place by the given order.
func sortRecords(records []downloadRecord, order sortOrder) {
	sort.SliceStable(records, func(i, j int) bool {
		return compareRecords(order, records[i], records[j]) < 0
	})
}

// compareRecords compares two records by the given sort order.
// returns -1, 0, or 1.
func compareRecords(order sortOrder, a, b downloadRecord) int {
	switch order {
	case sortLatest:
		return b.StartTime.Compare(a.StartTime)
	case sortOldest:
		return a.StartTime.Compare(b.StartTime)
	case sortLargest:
		return cmp.Compare(b.TotalBytes, a.TotalBytes)
	case sortSmallest:
		return cmp.Compare(a.TotalBytes, b.TotalBytes)
	case sortService:
		if c := cmp.Compare(strings.ToLower(a.Service), strings.ToLower(b.Service)); c != 0 {
			return c
		}
		return b.StartTime.Compare(a.StartTime)
	}
	return 0
}

// groupDownloads buckets each record into exactly one group:
// identified game, zero-byte metadata, or service content. groups of
// identified games always sort ahead of metadata/content groups —
// deliberate display priority, not an accident of the sort key — and
// within each partition the active sort's byte comparator breaks ties.
func groupDownloads(records []downloadRecord, order sortOrder) []displayItem {
	groups := make(map[string]*downloadGroup)
	var groupOrder []string // encounter order for stability

	for _, r := range records {
		key, name := classifyRecord(&r)
		g, ok := groups[key]
		if !ok {
			g = &downloadGroup{
				ID:        key,
				Name:      name,
				Clients:   make(map[string]struct{}),
				FirstSeen: r.StartTime,
				LastSeen:  r.StartTime,
			}
			groups[key] = g
			groupOrder = append(groupOrder, key)
		}

		g.Downloads = append(g.Downloads, r)
		g.TotalBytes += r.TotalBytes
		g.CacheHitBytes += r.CacheHitBytes
		g.CacheMissBytes += r.CacheMissBytes
		g.Clients[r.ClientIP] = struct{}{}
		g.Count++
		if r.StartTime.Before(g.FirstSeen) {
			g.FirstSeen = r.StartTime
		}
		if r.StartTime.After(g.LastSeen) {
			g.LastSeen = r.StartTime
		}
		if r.EndTime != nil && r.EndTime.After(g.LastSeen) {
			g.LastSeen = *r.EndTime
		}
	}

	items := make([]displayItem, 0, len(groupOrder))
	for _, key := range groupOrder {
		items = append(items, displayItem{group: groups[key]})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].group, items[j].group
		aGame := strings.HasPrefix(a.ID, "game-")
		bGame := strings.HasPrefix(b.ID, "game-")
		if aGame != bGame {
			return aGame
		}
		return compareGroupBytes(order, a, b) < 0
	})
	return items
}

// classifyRecord picks the single group a record belongs to, in
// priority order: identified game, then zero-byte metadata, then
// service content.
func classifyRecord(r *downloadRecord) (key, name string) {
	service := strings.ToLower(r.Service)
	switch {
	case hasKnownGame(r):
		return "game-" + r.GameName, r.GameName
	case r.TotalBytes == 0:
		return "metadata-" + service, service + " metadata"
	default:
		return "content-" + service, service + " content"
	}
}

// compareGroupBytes breaks group ordering ties with the active sort's
// byte comparator. chronological orders collapse to largest-first:
// grouping intentionally overrides them.
func compareGroupBytes(order sortOrder, a, b *downloadGroup) int {
	if order == sortSmallest {
		return cmp.Compare(a.TotalBytes, b.TotalBytes)
	}
	return cmp.Compare(b.TotalBytes, a.TotalBytes)
}

// computeFeedStats aggregates the raw record list for the stats bar.
func computeFeedStats(records []downloadRecord) feedStats {
	var s feedStats
	clients := make(map[string]struct{})
	for _, r := range records {
		s.TotalBytes += r.TotalBytes
		s.CacheHitBytes += r.CacheHitBytes
		if r.isActive() {
			s.ActiveCount++
		}
		clients[r.ClientIP] = struct{}{}
	}
	s.RecordCount = len(records)
	s.ClientCount = len(clients)
	return s
}
