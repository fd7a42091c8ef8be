// formatting helpers: byte sizes, durations, hit ratios.
// no lipgloss dependency — pure data transformations.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// formatBytes renders a byte count in binary units ("1.9 MiB").
func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// hitPercent renders the cache hit ratio of a transfer. tolerates
// hit > total from a corrupt feed by clamping to 100%.
func hitPercent(hit, total int64) string {
	if total <= 0 {
		return "-"
	}
	pct := float64(hit) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return fmt.Sprintf("%.1f%%", pct)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	secs := int64(d.Seconds())
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	mins := secs / 60
	secs = secs % 60
	if mins < 60 {
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := mins / 60
	mins = mins % 60
	if hours < 24 {
		return fmt.Sprintf("%dh%02dm", hours, mins)
	}
	days := hours / 24
	hours = hours % 24
	return fmt.Sprintf("%dd%dh", days, hours)
}

// recordTitle is the primary display label of a record: the game when
// known, the service otherwise.
func recordTitle(r *downloadRecord) string {
	if r.GameName != "" {
		return r.GameName
	}
	return strings.ToLower(r.Service)
}

// recordStatus summarizes a record's lifecycle for display.
func recordStatus(r *downloadRecord) string {
	if r.isActive() {
		return "active"
	}
	if r.TotalBytes == 0 {
		return "metadata"
	}
	return "done"
}

// truncOrPad truncates or right-pads a string to exactly width characters.
func truncOrPad(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(s) > width {
		return s[:width]
	}
	if len(s) < width {
		return s + strings.Repeat(" ", width-len(s))
	}
	return s
}
