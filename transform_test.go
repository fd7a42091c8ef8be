package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tstTime(minutesAgo int) time.Time {
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	return base.Add(-time.Duration(minutesAgo) * time.Minute)
}

func rec(service string, bytes int64, opts ...func(*downloadRecord)) downloadRecord {
	r := downloadRecord{
		Service:        service,
		ClientIP:       "172.16.1.20",
		TotalBytes:     bytes,
		CacheHitBytes:  bytes / 2,
		CacheMissBytes: bytes - bytes/2,
		StartTime:      tstTime(10),
	}
	end := r.StartTime.Add(time.Minute)
	r.EndTime = &end
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func withGame(name string) func(*downloadRecord) {
	return func(r *downloadRecord) { r.GameName = name }
}

func withClient(ip string) func(*downloadRecord) {
	return func(r *downloadRecord) { r.ClientIP = ip }
}

func withStart(minutesAgo int) func(*downloadRecord) {
	return func(r *downloadRecord) { r.StartTime = tstTime(minutesAgo) }
}

func TestFilterZeroBytes(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 0),
		rec("steam", 2_000_000, withGame("Half-Life")),
	}
	cfg := defaultPipelineConfig() // ShowZeroBytes false

	items := transformDownloads(records, cfg)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].record)
	assert.Equal(t, int64(2_000_000), items[0].record.TotalBytes)
}

func TestFilterSmallFiles(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 0),
		rec("steam", 512),
		rec("steam", 1<<20-1),
		rec("steam", 1<<20),
	}
	cfg := defaultPipelineConfig()
	cfg.ShowZeroBytes = true
	cfg.ShowSmallFiles = false

	items := transformDownloads(records, cfg)
	// the zero-byte record is not "small", it has its own filter
	require.Len(t, items, 2)
	assert.Equal(t, int64(0), items[0].record.TotalBytes)
	assert.Equal(t, int64(1<<20), items[1].record.TotalBytes)
}

func TestFilterLocalhost(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 5_000_000, withClient("127.0.0.1")),
		rec("steam", 5_000_000, withClient("::1")),
		rec("steam", 5_000_000, withClient("172.16.1.5")),
	}
	cfg := defaultPipelineConfig()
	cfg.HideLocalhost = true

	items := transformDownloads(records, cfg)
	require.Len(t, items, 1)
	assert.Equal(t, "172.16.1.5", items[0].record.ClientIP)
}

func TestFilterUnknownGames(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 5_000_000, withGame("Unknown Steam Game")),
		rec("steam", 5_000_000, withGame("Steam App 12345")),
		rec("steam", 5_000_000, withGame("Portal 2")),
		rec("epic", 5_000_000), // no game name at all: absence is not "unknown"
	}
	cfg := defaultPipelineConfig()
	cfg.HideUnknownGames = true

	items := transformDownloads(records, cfg)
	require.Len(t, items, 2)
	names := []string{items[0].record.GameName, items[1].record.GameName}
	assert.Contains(t, names, "Portal 2")
	assert.Contains(t, names, "")
}

func TestFilterService(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 5_000_000),
		rec("Steam", 5_000_000), // case-normalized at filter time
		rec("epic", 5_000_000),
	}
	cfg := defaultPipelineConfig()
	cfg.SelectedService = "steam"

	items := transformDownloads(records, cfg)
	require.Len(t, items, 2)
}

func TestServiceNormalization(t *testing.T) {
	assert.Equal(t, "steam", normalizeService("Steam"))
	assert.Equal(t, "wsus", normalizeService(" wsus "))
	assert.Equal(t, "localhost", normalizeService("localhost"))
	assert.Equal(t, "localhost", normalizeService("LOCALHOST"))
	assert.Equal(t, "localhost", normalizeService("127"))
	assert.Equal(t, "localhost", normalizeService("127.0.0.1"))
	assert.Equal(t, "ip-address", normalizeService("192.168.1.50"))
	assert.Equal(t, "ip-address", normalizeService("10.0.0.7"))
	// dotted names with letters are real service labels, not IPs
	assert.Equal(t, "epic.games", normalizeService("Epic.Games"))
}

func TestFilterCollapsesRawIPServices(t *testing.T) {
	records := []downloadRecord{
		rec("127.0.0.1", 5_000_000),
		rec("LOCALHOST", 5_000_000),
		rec("192.168.1.50", 5_000_000),
		rec("steam", 5_000_000),
	}

	cfg := defaultPipelineConfig()
	cfg.SelectedService = "localhost"
	items := transformDownloads(records, cfg)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, "localhost", it.record.Service)
	}

	cfg = defaultPipelineConfig()
	cfg.GroupGames = true
	items = transformDownloads(records, cfg)
	ids := make(map[string]bool)
	for _, it := range items {
		ids[it.group.ID] = true
	}
	assert.True(t, ids["content-localhost"])
	assert.True(t, ids["content-ip-address"])
	assert.True(t, ids["content-steam"])
	assert.Len(t, ids, 3)
}

func TestHideLocalhostCoversServiceBucket(t *testing.T) {
	records := []downloadRecord{
		rec("127.0.0.1", 5_000_000), // loopback as the service label
		rec("steam", 5_000_000, withClient("127.0.0.1")),
		rec("steam", 5_000_000),
	}
	cfg := defaultPipelineConfig()
	cfg.HideLocalhost = true

	items := transformDownloads(records, cfg)
	require.Len(t, items, 1)
	assert.Equal(t, "steam", items[0].record.Service)
	assert.NotEqual(t, "127.0.0.1", items[0].record.ClientIP)
}

func TestTransformPureAndIdempotent(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 9_000_000, withStart(5)),
		rec("epic", 3_000_000, withStart(1)),
		rec("wsus", 7_000_000, withStart(9)),
	}
	snapshot := make([]downloadRecord, len(records))
	copy(snapshot, records)

	cfg := defaultPipelineConfig()
	cfg.SortOrder = sortLargest

	first := transformDownloads(records, cfg)
	second := transformDownloads(records, cfg)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].key(), second[i].key())
	}
	// input order untouched by the sort stage
	assert.Equal(t, snapshot, records)
}

func TestSortOrders(t *testing.T) {
	records := []downloadRecord{
		rec("wsus", 7_000_000, withStart(9)),
		rec("steam", 9_000_000, withStart(5)),
		rec("epic", 3_000_000, withStart(1)),
	}

	cases := []struct {
		order sortOrder
		want  []string // expected service order
	}{
		{sortLatest, []string{"epic", "steam", "wsus"}},
		{sortOldest, []string{"wsus", "steam", "epic"}},
		{sortLargest, []string{"steam", "wsus", "epic"}},
		{sortSmallest, []string{"epic", "wsus", "steam"}},
		{sortService, []string{"epic", "steam", "wsus"}},
	}

	for _, tc := range cases {
		cfg := defaultPipelineConfig()
		cfg.SortOrder = tc.order
		items := transformDownloads(records, cfg)
		require.Len(t, items, 3, "order %s", tc.order)
		for i, want := range tc.want {
			assert.Equal(t, want, items[i].record.Service, "order %s index %d", tc.order, i)
		}
	}
}

func TestSortServiceSecondaryKey(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 1_500_000, withStart(30)),
		rec("steam", 2_500_000, withStart(5)),
	}
	cfg := defaultPipelineConfig()
	cfg.SortOrder = sortService

	items := transformDownloads(records, cfg)
	require.Len(t, items, 2)
	// same service: newer start first
	assert.Equal(t, int64(2_500_000), items[0].record.TotalBytes)
}

func TestGroupingSharedGame(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 4_000_000, withGame("Portal 2"), withClient("172.16.1.5")),
		rec("steam", 6_000_000, withGame("Portal 2"), withClient("172.16.1.6")),
	}
	cfg := defaultPipelineConfig()
	cfg.GroupGames = true

	items := transformDownloads(records, cfg)
	require.Len(t, items, 1)
	g := items[0].group
	require.NotNil(t, g)
	assert.Equal(t, "game-Portal 2", g.ID)
	assert.Equal(t, 2, g.Count)
	assert.Equal(t, int64(10_000_000), g.TotalBytes)
	assert.Len(t, g.Clients, 2)
}

func TestGroupingPartitionInvariant(t *testing.T) {
	records := synthDownloads(tstTime(0), 500, 7)
	cfg := defaultPipelineConfig()
	cfg.ShowZeroBytes = true
	cfg.GroupGames = true
	cfg.ItemsPerPage = unlimitedPageSize

	filtered := filterDownloads(records, cfg)
	items := transformDownloads(records, cfg)

	memberCount := 0
	grouped := make(map[string]int) // key multiset across all groups
	for _, it := range items {
		g := it.group
		require.NotNil(t, g)
		require.Equal(t, g.Count, len(g.Downloads))
		memberCount += g.Count

		var gt, gh, gm int64
		for _, d := range g.Downloads {
			grouped[recordKey(&d)]++
			gt += d.TotalBytes
			gh += d.CacheHitBytes
			gm += d.CacheMissBytes
		}
		assert.Equal(t, gt, g.TotalBytes)
		assert.Equal(t, gh, g.CacheHitBytes)
		assert.Equal(t, gm, g.CacheMissBytes)
	}

	// every filtered record lands in exactly one group
	assert.Equal(t, len(filtered), memberCount)
	want := make(map[string]int)
	for i := range filtered {
		want[recordKey(&filtered[i])]++
	}
	assert.Equal(t, want, grouped)
}

func TestGroupClassification(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 5_000_000, withGame("Dota 2")),
		rec("steam", 0),
		rec("steam", 5_000_000),
		rec("steam", 5_000_000, withGame("Unknown Steam Game")),
	}
	cfg := defaultPipelineConfig()
	cfg.ShowZeroBytes = true
	cfg.GroupGames = true

	items := transformDownloads(records, cfg)
	ids := make(map[string]bool)
	for _, it := range items {
		ids[it.group.ID] = true
	}
	assert.True(t, ids["game-Dota 2"])
	assert.True(t, ids["metadata-steam"])
	assert.True(t, ids["content-steam"]) // unknown sentinel lands in content, not game
	assert.Len(t, ids, 3)
}

func TestGroupOrderingGamesFirst(t *testing.T) {
	records := []downloadRecord{
		rec("wsus", 900_000_000),
		rec("steam", 1_000_000, withGame("Half-Life")),
		rec("epic", 500_000_000),
		rec("steam", 2_000_000, withGame("Dota 2")),
	}
	cfg := defaultPipelineConfig()
	cfg.GroupGames = true
	cfg.SortOrder = sortLatest // chronological sort is overridden by grouping

	items := transformDownloads(records, cfg)
	require.Len(t, items, 4)
	// game groups first, largest-first within the partition
	assert.Equal(t, "game-Dota 2", items[0].group.ID)
	assert.Equal(t, "game-Half-Life", items[1].group.ID)
	assert.Equal(t, "content-wsus", items[2].group.ID)
	assert.Equal(t, "content-epic", items[3].group.ID)
}

func TestGroupOrderingSmallest(t *testing.T) {
	records := []downloadRecord{
		rec("steam", 2_000_000, withGame("Dota 2")),
		rec("steam", 1_000_000, withGame("Half-Life")),
	}
	cfg := defaultPipelineConfig()
	cfg.GroupGames = true
	cfg.SortOrder = sortSmallest

	items := transformDownloads(records, cfg)
	require.Len(t, items, 2)
	assert.Equal(t, "game-Half-Life", items[0].group.ID)
}

func TestLimitStage(t *testing.T) {
	records := synthDownloads(tstTime(0), 300, 3)

	cfg := defaultPipelineConfig()
	cfg.ShowZeroBytes = true
	cfg.ItemsPerPage = 50
	assert.Len(t, transformDownloads(records, cfg), 50)

	cfg.ItemsPerPage = unlimitedPageSize
	assert.Len(t, transformDownloads(records, cfg), 300)
}

func TestUnknownGameNameMatching(t *testing.T) {
	assert.True(t, isUnknownGameName("Unknown Steam Game"))
	assert.True(t, isUnknownGameName("Steam App 12345"))
	assert.True(t, isUnknownGameName("Epic App 9"))
	assert.False(t, isUnknownGameName(""))
	assert.False(t, isUnknownGameName("Half-Life"))
	assert.False(t, isUnknownGameName("Portal 2"))       // trailing digits alone don't match
	assert.False(t, isUnknownGameName("Steam App Tool")) // id must be numeric
}

func TestComputeFeedStats(t *testing.T) {
	active := rec("steam", 10, withClient("a"))
	active.EndTime = nil
	records := []downloadRecord{
		active,
		rec("epic", 30, withClient("a")),
		rec("wsus", 60, withClient("b")),
	}

	s := computeFeedStats(records)
	assert.Equal(t, int64(100), s.TotalBytes)
	assert.Equal(t, 1, s.ActiveCount)
	assert.Equal(t, 2, s.ClientCount)
	assert.Equal(t, 3, s.RecordCount)
}
