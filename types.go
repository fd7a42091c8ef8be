// data types shared across the codebase.
//
// downloadRecord comes from the proxy's REST feed (or the mock
// generator) and is immutable once decoded: the pipeline only derives
// views over a record list, it never mutates one. each refresh is a
// full replacement of the list.

package main

import "time"

// downloadRecord represents one observed transfer through the cache.
type downloadRecord struct {
	// ID is absent (nil) for synthetic records. ids beyond the int32
	// range are real but not fetchable for enrichment.
	ID *int64

	Service  string // lowercase service name ("steam", "epic", ...)
	ClientIP string

	TotalBytes    int64
	CacheHitBytes int64
	// CacheMissBytes may violate hit+miss <= total on a corrupt feed;
	// nothing downstream assumes the invariant holds.
	CacheMissBytes int64

	StartTime time.Time
	EndTime   *time.Time // nil while the transfer is in progress

	// enrichment hints supplied inline when the source already knows
	// the game (mock feed, or a proxy with its own depot mapping).
	GameName  string
	GameAppID *int64
}

// isActive reports whether the transfer is still in progress.
func (r downloadRecord) isActive() bool {
	return r.EndTime == nil
}

// downloadGroup aggregates records sharing a game identity or a
// service+type classification.
type downloadGroup struct {
	ID   string // "game-<name>", "metadata-<service>" or "content-<service>"
	Name string // display label: game name or service label

	Downloads []downloadRecord // members, encounter order

	TotalBytes     int64
	CacheHitBytes  int64
	CacheMissBytes int64

	Clients   map[string]struct{} // distinct client IPs
	FirstSeen time.Time
	LastSeen  time.Time
	Count     int
}

// displayItem is the tagged union flowing out of the transform stage:
// either a single record or a group, never both.
type displayItem struct {
	record *downloadRecord
	group  *downloadGroup
}

// key returns a stable identity for the item, used by the window
// renderer's offset cache and as the expansion id. positional indices
// would silently corrupt cached heights on reorder.
func (d displayItem) key() string {
	if d.group != nil {
		return d.group.ID
	}
	return recordKey(d.record)
}

// enrichmentEntry holds the resolved metadata for a record id, or the
// error that resolving it produced. once cached it is never replaced
// within the session.
type enrichmentEntry struct {
	GameName    string
	AppID       int64
	HeaderImage string
	Description string
	Err         error
}

// feedStats carries the aggregate numbers for the stats bar, computed
// over the raw (unfiltered) record list each refresh.
type feedStats struct {
	TotalBytes    int64
	CacheHitBytes int64
	ActiveCount   int
	ClientCount   int
	RecordCount   int
}
