// bubbletea model, update loop, and commands.
//
// follows the elm architecture: model holds all state, Update is a pure
// state transition, View renders to string. side effects happen in
// tea.Cmd functions (feed polls, materializer chunks, enrichment
// fetches). any preference change re-runs the transform and starts a
// fresh materialization run, superseding the previous one.

package main

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// -- messages --

type feedMsg struct {
	records []downloadRecord
	stats   feedStats
	err     error
}

type tickMsg time.Time

type chunkMsg materializeChunk

type enrichedMsg struct {
	key string
}

// -- model --

type model struct {
	// terminal dimensions
	width  int
	height int

	// collaborators
	rc    runtimeConfig
	prefs *prefStore
	cache *enrichCache
	mat   *materializer
	mock  bool

	// data from the last feed refresh
	records []downloadRecord
	stats   feedStats
	feedErr error

	// pipeline state
	items   []displayItem // full transformed list
	shown   []displayItem // materialized prefix of items
	loading bool          // true until the final chunk lands
	chunks  <-chan materializeChunk

	// window state
	win         *windowIndex
	scroll      int
	cursor      int
	expandedKey string

	ready bool
}

func newTUIModel(rc runtimeConfig, prefs *prefStore, cache *enrichCache, mock bool) model {
	return model{
		rc:    rc,
		prefs: prefs,
		cache: cache,
		mat:   &materializer{},
		mock:  mock,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case feedMsg:
		return m.handleFeed(msg)
	case tickMsg:
		return m, tea.Batch(m.tickCmd(), m.fetchCmd())
	case chunkMsg:
		return m.handleChunk(materializeChunk(msg))
	case enrichedMsg:
		// the cache already holds the entry (or its error); if the
		// expanded item grew artwork, its height class changed.
		m.syncExpansion()
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	return m.renderListView()
}

// -- data handling --

func (m model) handleFeed(msg feedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.feedErr = msg.err
		logger.Warn("feed refresh failed", slog.Any("error", msg.err))
		return m, nil
	}
	m.feedErr = nil
	m.records = msg.records
	m.stats = msg.stats
	m.ready = true

	// records arriving with inline identity skip the network entirely
	for i := range m.records {
		m.cache.prepopulate(&m.records[i])
	}

	return m.restartPipeline()
}

// restartPipeline re-runs the transform over the current records and
// starts a new materialization run, superseding any in-flight one.
func (m model) restartPipeline() (tea.Model, tea.Cmd) {
	cfg := m.prefs.config()
	m.items = transformDownloads(m.records, cfg)
	m.loading = true

	ch, _ := m.mat.start(m.items, cfg.ItemsPerPage)
	m.chunks = ch
	return m, waitForChunk(ch)
}

func (m model) handleChunk(c materializeChunk) (tea.Model, tea.Cmd) {
	// a chunk from a superseded run must never reach the display list
	if c.gen != m.mat.generation() {
		return m, nil
	}
	m.shown = c.items
	m.loading = !c.done

	cfg := m.prefs.config()
	if virtualizationEngaged(len(m.shown), cfg.ItemsPerPage) {
		if m.win.stale(m.shown, cfg.ViewMode) {
			m.win = buildWindowIndex(m.shown, cfg.ViewMode)
			m.syncExpansion()
		}
	} else {
		// small lists render directly; the index isn't worth keeping
		m.win = nil
	}
	m.clampCursor()

	if !c.done {
		return m, waitForChunk(m.chunks)
	}
	return m, nil
}

// -- key handling --

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m, m.fetchCmd()

	case "j", "down":
		m.cursor = min(m.cursor+1, max(0, len(m.shown)-1))
	case "k", "up":
		m.cursor = max(m.cursor-1, 0)
	case "d", "pgdown":
		m.cursor = min(m.cursor+m.viewportRows()/2, max(0, len(m.shown)-1))
	case "u", "pgup":
		m.cursor = max(m.cursor-m.viewportRows()/2, 0)
	case "home":
		m.cursor = 0
	case "end":
		m.cursor = max(0, len(m.shown)-1)

	case "enter":
		return m.toggleExpand()

	case "z":
		m.prefs.setBool(prefShowZeroBytes, !m.prefs.config().ShowZeroBytes)
		return m.restartPipeline()
	case "f":
		m.prefs.setBool(prefShowSmallFiles, !m.prefs.config().ShowSmallFiles)
		return m.restartPipeline()
	case "l":
		m.prefs.setBool(prefHideLocalhost, !m.prefs.config().HideLocalhost)
		return m.restartPipeline()
	case "x":
		m.prefs.setBool(prefHideUnknownGames, !m.prefs.config().HideUnknownGames)
		return m.restartPipeline()
	case "g":
		m.prefs.setBool(prefGroupGames, !m.prefs.config().GroupGames)
		m.expandedKey = ""
		return m.restartPipeline()
	case "v":
		next := viewNormal
		if m.prefs.config().ViewMode == viewNormal {
			next = viewCompact
		}
		m.prefs.set(prefViewMode, string(next))
		m.win = nil // height classes changed wholesale
		return m.restartPipeline()
	case "s":
		m.prefs.set(prefSelectedService, nextService(m.prefs.config().SelectedService))
		return m.restartPipeline()
	case ">", ".":
		m.prefs.set(prefSortOrder, string(nextSort(m.prefs.config().SortOrder, 1)))
		return m.restartPipeline()
	case "<", ",":
		m.prefs.set(prefSortOrder, string(nextSort(m.prefs.config().SortOrder, -1)))
		return m.restartPipeline()
	case "p":
		m.prefs.setItemsPerPage(nextPageSize(m.prefs.config().ItemsPerPage))
		return m.restartPipeline()
	}

	m.clampCursor()
	return m, nil
}

// toggleExpand expands the item under the cursor (or collapses it).
// expanding a live record whose metadata isn't cached yet kicks off a
// single-flight fetch.
func (m model) toggleExpand() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.shown) {
		return m, nil
	}
	it := m.shown[m.cursor]
	key := it.key()

	if m.expandedKey == key {
		m.expandedKey = ""
		m.syncExpansion()
		m.clampCursor()
		return m, nil
	}
	m.expandedKey = key
	m.syncExpansion()
	// keep the detail block on screen when the cursor sits at the bottom
	m.clampCursor()

	if it.record != nil && enrichable(it.record) {
		if _, cached := m.cache.lookup(*it.record.ID); !cached {
			return m, m.enrichCmd(it.record, key)
		}
	}
	return m, nil
}

// -- geometry --

// listOverhead returns the number of non-item lines in the list view.
func (m model) listOverhead() int {
	// header + stats bar + column header + separator + footer
	return 5
}

func (m model) viewportRows() int {
	return max(1, m.height-m.listOverhead())
}

// syncExpansion points the window index at the currently expanded
// item, if it is present in the shown list.
func (m *model) syncExpansion() {
	if m.win == nil {
		return
	}
	if m.expandedKey == "" {
		m.win.setExpanded(-1, 0)
		return
	}
	for i, it := range m.shown {
		if it.key() == m.expandedKey {
			m.win.setExpanded(i, m.expandedExtraRows(it))
			return
		}
	}
	m.win.setExpanded(-1, 0)
}

// expandedExtraRows returns the detail block height for an item: the
// artwork class when enrichment resolved a header image, the plain
// class otherwise.
func (m model) expandedExtraRows(it displayItem) int {
	if it.record != nil && it.record.ID != nil {
		if e, ok := m.cache.lookup(*it.record.ID); ok && e.Err == nil && e.HeaderImage != "" {
			return detailRowsArtwork
		}
	}
	return detailRowsPlain
}

// itemTop returns the first row of shown item i: from the index when
// virtualization is engaged, by direct summation otherwise (small
// lists only, so the walk is cheap).
func (m model) itemTop(i int) int {
	if m.win != nil {
		return m.win.top(i)
	}
	mode := m.prefs.config().ViewMode
	top := 0
	for j := 0; j < i && j < len(m.shown); j++ {
		top += itemHeight(m.shown[j], mode)
		if m.shown[j].key() == m.expandedKey {
			top += m.expandedExtraRows(m.shown[j])
		}
	}
	return top
}

// clampCursor keeps the cursor inside the shown list and scrolls the
// window so the cursor's rows stay visible.
func (m *model) clampCursor() {
	m.cursor = min(m.cursor, max(0, len(m.shown)-1))

	if len(m.shown) == 0 {
		m.scroll = 0
		return
	}
	viewport := m.viewportRows()
	top := m.itemTop(m.cursor)
	bottom := m.itemTop(m.cursor + 1)
	if top < m.scroll {
		m.scroll = top
	}
	if bottom > m.scroll+viewport {
		m.scroll = bottom - viewport
	}
	if m.win != nil {
		m.scroll = min(m.scroll, m.win.maxScroll(viewport))
	}
	m.scroll = max(0, m.scroll)
}

// -- preference cycling --

func nextService(current string) string {
	for i, s := range knownServices {
		if s == current {
			return knownServices[(i+1)%len(knownServices)]
		}
	}
	return knownServices[0]
}

func nextSort(current sortOrder, dir int) sortOrder {
	for i, s := range sortCycle {
		if s == current {
			return sortCycle[(i+dir+len(sortCycle))%len(sortCycle)]
		}
	}
	return sortCycle[0]
}

// pageSizeCycle is what the p key steps through.
var pageSizeCycle = []int{25, 50, 100, 250, unlimitedPageSize}

func nextPageSize(current int) int {
	for i, n := range pageSizeCycle {
		if n == current {
			return pageSizeCycle[(i+1)%len(pageSizeCycle)]
		}
	}
	return pageSizeCycle[0]
}

// -- commands --

func (m model) fetchCmd() tea.Cmd {
	if m.mock {
		return func() tea.Msg {
			records := synthDownloads(time.Now(), 1200, 42)
			return feedMsg{records: records, stats: computeFeedStats(records)}
		}
	}
	apiURL := m.rc.apiURL
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		records, err := fetchDownloads(ctx, apiURL)
		if err != nil {
			return feedMsg{err: err}
		}
		return feedMsg{records: records, stats: computeFeedStats(records)}
	}
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.rc.pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChunk delivers the next materializer chunk as a message.
// returns nil when the run's channel closed (finished or superseded).
func waitForChunk(ch <-chan materializeChunk) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return chunkMsg(c)
	}
}

func (m model) enrichCmd(r *downloadRecord, key string) tea.Cmd {
	cache := m.cache
	rec := *r
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		cache.fetch(ctx, &rec)
		return enrichedMsg{key: key}
	}
}
