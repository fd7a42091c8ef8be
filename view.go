// rendering: the View() method delegates and all list view display.
//
// lipgloss-based ANSI colors: green = active transfer, white = done,
// dim = metadata/zero-byte, red = feed errors. every item renders to
// exactly its height-class line count so the window index's offsets
// stay truthful.

package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// -- styles --

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))  // green
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15")) // bright white
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // dim
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))  // red
	groupStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)

	selectStyle = lipgloss.NewStyle().Background(lipgloss.Color("6")).Foreground(lipgloss.Color("0"))
	hdrDimBold  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Bold(true)
)

func recordStyleFor(r *downloadRecord) lipgloss.Style {
	switch recordStatus(r) {
	case "active":
		return activeStyle
	case "metadata":
		return metaStyle
	default:
		return doneStyle
	}
}

// titleWidth computes the flexible title column width.
func (m model) titleWidth() int {
	fixed := colGap + colService + colGap + colClient + colGap + colBytes +
		colGap + colHit + colGap + colTime
	return max(10, m.width-fixed-colGap)
}

// -- list view --

func (m model) renderListView() string {
	if !m.ready {
		return "\n  loading...\n"
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatsBar())
	b.WriteString("\n")
	b.WriteString(m.renderColumnHeaders())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", max(0, m.width))))
	b.WriteString("\n")

	viewport := m.viewportRows()
	for _, line := range m.renderRows(viewport) {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m model) renderHeader() string {
	crumb := " lancache > downloads"
	cfg := m.prefs.config()
	if cfg.SelectedService != "all" {
		crumb += " > " + cfg.SelectedService
	}
	right := time.Now().Format("15:04:05") + " "
	pad := max(0, m.width-len(crumb)-len(right))
	line := crumb + strings.Repeat(" ", pad) + right
	if len(line) > m.width && m.width > 0 {
		line = line[:m.width]
	}
	return headerStyle.Render(line)
}

func (m model) renderStatsBar() string {
	cfg := m.prefs.config()

	pageLabel := "unlimited"
	if cfg.ItemsPerPage > 0 {
		pageLabel = fmt.Sprintf("%d", cfg.ItemsPerPage)
	}
	grouping := "off"
	if cfg.GroupGames {
		grouping = "on"
	}
	loading := ""
	if m.loading {
		loading = "  materializing..."
	}

	stats := fmt.Sprintf(" %s served  %s hit (%s)  %d active  %d clients  |  %d/%d shown  sort:%s  group:%s  page:%s%s",
		formatBytes(m.stats.TotalBytes),
		formatBytes(m.stats.CacheHitBytes),
		hitPercent(m.stats.CacheHitBytes, m.stats.TotalBytes),
		m.stats.ActiveCount,
		m.stats.ClientCount,
		len(m.shown), len(m.items),
		cfg.SortOrder, grouping, pageLabel, loading,
	)
	if len(stats) > m.width && m.width > 0 {
		stats = stats[:m.width]
	}
	return dimStyle.Render(stats)
}

func (m model) renderColumnHeaders() string {
	tw := m.titleWidth()
	header := "  " + truncOrPad("GAME / SERVICE", tw) +
		"  " + truncOrPad("SERVICE", colService) +
		"  " + truncOrPad("CLIENT", colClient) +
		"  " + truncOrPad("SIZE", colBytes) +
		"  " + truncOrPad("HIT", colHit) +
		"  " + truncOrPad("STARTED", colTime)
	return hdrDimBold.Render(header)
}

// -- row windowing --

// renderRows produces exactly the viewport's lines. virtualized path:
// only the items whose rows intersect the viewport (plus overscan) are
// rendered, then clipped to the scroll interval. direct path: all
// items render and the viewport is sliced out.
func (m model) renderRows(viewport int) []string {
	if len(m.shown) == 0 {
		empty := dimStyle.Render("  (no downloads match the current filters)")
		return []string{empty}
	}

	var lines []string
	clipOffset := m.scroll

	if m.win != nil {
		start, end := m.win.visibleRange(m.scroll, viewport)
		for i := start; i < end; i++ {
			lines = append(lines, m.renderItemLines(i)...)
		}
		clipOffset = m.scroll - m.win.top(start)
	} else {
		for i := range m.shown {
			lines = append(lines, m.renderItemLines(i)...)
		}
	}

	if clipOffset < 0 {
		clipOffset = 0
	}
	if clipOffset > len(lines) {
		clipOffset = len(lines)
	}
	lines = lines[clipOffset:]
	if len(lines) > viewport {
		lines = lines[:viewport]
	}
	return lines
}

// renderItemLines renders shown[i] to exactly its height-class line
// count. a panic while rendering one item is caught here: that item
// degrades to a placeholder of the same height and the rest of the
// list survives.
func (m model) renderItemLines(i int) (lines []string) {
	it := m.shown[i]
	mode := m.prefs.config().ViewMode

	// base height never panics; the guard below reads the latest value
	want := itemHeight(it, mode)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("item render failed", slog.Int("index", i), slog.Any("panic", r))
			lines = make([]string, want)
			lines[0] = errorStyle.Render("  (unrenderable item)")
		}
	}()

	expanded := it.key() == m.expandedKey
	if expanded {
		want += m.expandedExtraRows(it)
	}

	selected := i == m.cursor
	if it.group != nil {
		lines = m.renderGroupLines(it.group, mode, selected)
	} else {
		lines = m.renderRecordLines(it.record, mode, selected)
	}
	if expanded {
		lines = append(lines, m.renderDetailLines(it)...)
	}
	return fitLines(lines, want)
}

// fitLines pads or truncates to exactly n lines so heights never lie.
func fitLines(lines []string, n int) []string {
	for len(lines) < n {
		lines = append(lines, "")
	}
	return lines[:n]
}

// clampLine truncates a rendered line to the terminal width. a line
// that wrapped would occupy two rows and break the height contract.
func (m model) clampLine(s string) string {
	return lipgloss.NewStyle().MaxWidth(m.width).Render(s)
}

// -- record rows --

func (m model) renderRecordLines(r *downloadRecord, mode viewMode, selected bool) []string {
	tw := m.titleWidth()

	row1 := "  " + truncOrPad(recordTitle(r), tw) +
		"  " + truncOrPad(strings.ToLower(r.Service), colService) +
		"  " + truncOrPad(r.ClientIP, colClient) +
		"  " + truncOrPad(formatBytes(r.TotalBytes), colBytes) +
		"  " + truncOrPad(hitPercent(r.CacheHitBytes, r.TotalBytes), colHit) +
		"  " + truncOrPad(r.StartTime.Format("15:04:05"), colTime)

	style := recordStyleFor(r)
	if selected {
		style = selectStyle
	}

	if mode == viewCompact {
		return []string{style.Width(m.width).MaxWidth(m.width).Render(row1)}
	}

	duration := "-"
	if r.EndTime != nil {
		duration = formatDuration(r.EndTime.Sub(r.StartTime))
	} else {
		duration = formatDuration(time.Since(r.StartTime)) + "+"
	}
	row2 := "  " + truncOrPad("hit "+formatBytes(r.CacheHitBytes)+"  miss "+formatBytes(r.CacheMissBytes), tw) +
		"  " + truncOrPad(recordStatus(r), colService) +
		"  " + truncOrPad("", colClient) +
		"  " + truncOrPad("", colBytes) +
		"  " + truncOrPad("", colHit) +
		"  " + truncOrPad(duration, colTime)

	row2Style := dimStyle
	if selected {
		row2Style = selectStyle
	}
	return []string{
		style.Width(m.width).MaxWidth(m.width).Render(row1),
		row2Style.Width(m.width).MaxWidth(m.width).Render(row2),
		"",
	}
}

// -- group rows --

func (m model) renderGroupLines(g *downloadGroup, mode viewMode, selected bool) []string {
	tw := m.titleWidth()

	marker := "▸"
	if g.ID == m.expandedKey {
		marker = "▾"
	}
	row1 := " " + marker + truncOrPad(" "+g.Name, tw) +
		"  " + truncOrPad(fmt.Sprintf("%d dls", g.Count), colService) +
		"  " + truncOrPad(fmt.Sprintf("%d clients", len(g.Clients)), colClient) +
		"  " + truncOrPad(formatBytes(g.TotalBytes), colBytes) +
		"  " + truncOrPad(hitPercent(g.CacheHitBytes, g.TotalBytes), colHit) +
		"  " + truncOrPad(g.LastSeen.Format("15:04:05"), colTime)

	style := groupStyle
	if selected {
		style = selectStyle
	}

	row2 := m.clampLine("  " + dimStyle.Render(fmt.Sprintf("first %s  last %s  hit %s  miss %s",
		g.FirstSeen.Format("15:04:05"), g.LastSeen.Format("15:04:05"),
		formatBytes(g.CacheHitBytes), formatBytes(g.CacheMissBytes))))

	if mode == viewCompact {
		return []string{
			style.Width(m.width).MaxWidth(m.width).Render(row1),
			row2,
		}
	}

	// normal mode adds a member preview line
	var members []string
	for _, d := range g.Downloads {
		members = append(members, d.ClientIP)
		if len(members) == 4 {
			break
		}
	}
	row3 := m.clampLine("  " + dimStyle.Render("clients: "+strings.Join(members, ", ")))
	return []string{
		style.Width(m.width).MaxWidth(m.width).Render(row1),
		row2,
		row3,
		"",
	}
}

// -- expanded detail --

// renderDetailLines renders the expansion block under the expanded
// item. exact line counts are enforced by the caller via fitLines; the
// artwork variant is two rows taller than the plain one.
func (m model) renderDetailLines(it displayItem) []string {
	indent := "      "

	if it.group != nil {
		lines := []string{indent + dimStyle.Render(strings.Repeat("┄", 40))}
		for i, d := range it.group.Downloads {
			if i == 3 {
				lines = append(lines, indent+dimStyle.Render(fmt.Sprintf("... and %d more", it.group.Count-3)))
				break
			}
			lines = append(lines, indent+fmt.Sprintf("%s  %s  %s",
				truncOrPad(d.ClientIP, colClient),
				truncOrPad(formatBytes(d.TotalBytes), colBytes),
				d.StartTime.Format("15:04:05")))
		}
		for i := range lines {
			lines[i] = m.clampLine(lines[i])
		}
		return lines
	}

	r := it.record
	lines := []string{indent + dimStyle.Render(strings.Repeat("┄", 40))}

	var entry *enrichmentEntry
	if r.ID != nil {
		entry, _ = m.cache.lookup(*r.ID)
	}
	switch {
	case entry != nil && entry.Err != nil:
		lines = append(lines, indent+errorStyle.Render("game details unavailable"))
	case entry != nil:
		lines = append(lines, indent+keyStyle.Render(entry.GameName)+dimStyle.Render(fmt.Sprintf("  app %d", entry.AppID)))
		if entry.HeaderImage != "" {
			lines = append(lines, indent+dimStyle.Render("art: "+entry.HeaderImage))
		}
		if entry.Description != "" {
			lines = append(lines, indent+truncOrPad(entry.Description, max(10, m.width-len(indent))))
		}
	case hasKnownGame(r):
		// inline hint only; nothing fetched (or nothing fetchable)
		lines = append(lines, indent+keyStyle.Render(r.GameName))
	default:
		lines = append(lines, indent+dimStyle.Render("loading game details..."))
	}

	lines = append(lines,
		indent+fmt.Sprintf("hit %s / miss %s of %s",
			formatBytes(r.CacheHitBytes), formatBytes(r.CacheMissBytes), formatBytes(r.TotalBytes)),
		indent+fmt.Sprintf("client %s  started %s", r.ClientIP, r.StartTime.Format("2006-01-02 15:04:05")))
	for i := range lines {
		lines[i] = m.clampLine(lines[i])
	}
	return lines
}

// -- footer --

func (m model) renderFooter() string {
	if m.feedErr != nil {
		msg := " feed error: " + m.feedErr.Error()
		if len(msg) > m.width && m.width > 0 {
			msg = msg[:m.width]
		}
		return errorStyle.Render(msg)
	}

	binds := []struct{ key, desc string }{
		{"q", "quit"},
		{"r", "refresh"},
		{"enter", "expand"},
		{"j/k", "move"},
		{"g", "group"},
		{"v", "view"},
		{"s", "service"},
		{">/<", "sort"},
		{"p", "page"},
		{"z", "zero"},
		{"f", "small"},
		{"l", "localhost"},
		{"x", "unknown"},
	}

	var parts []string
	for _, b := range binds {
		parts = append(parts, keyStyle.Render(b.key)+" "+helpStyle.Render(b.desc))
	}
	return " " + strings.Join(parts, "  ")
}
