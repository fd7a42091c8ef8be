// virtualized windowing over the materialized list.
//
// heights are terminal rows. a prefix-sum of per-item heights gives
// O(log n) lookup of the visible index range for any scroll offset;
// the sum is rebuilt only when the list identity or the view mode
// changes, never on scroll. expanding an item does not rebuild it
// either: the extra height is applied arithmetically to everything
// below the expanded index.

package main

import (
	"sort"
	"strconv"
)

// per-item height classes, in rows.
const (
	heightRecordCompact = 1
	heightRecordNormal  = 3
	heightGroupCompact  = 2
	heightGroupNormal   = 4

	// extra rows the expanded detail block adds.
	detailRowsPlain   = 5
	detailRowsArtwork = 7
)

// itemHeight returns the unexpanded height of an item under a view mode.
func itemHeight(it displayItem, mode viewMode) int {
	if it.group != nil {
		if mode == viewNormal {
			return heightGroupNormal
		}
		return heightGroupCompact
	}
	if mode == viewNormal {
		return heightRecordNormal
	}
	return heightRecordCompact
}

// virtualizationEngaged reports whether the window renderer should be
// used at all. small bounded lists render directly: the index upkeep
// costs more than it saves.
func virtualizationEngaged(itemCount, pageSize int) bool {
	return itemCount >= virtualizeThreshold || pageSize <= 0
}

// windowIndex is the prefix-sum height index for one list identity.
type windowIndex struct {
	listKey string // identity of the list the index was built for
	mode    viewMode

	offsets []int // offsets[i] = top row of item i; len = n+1

	expandedIdx   int // -1 when nothing is expanded
	expandedExtra int
}

// listIdentity derives a cheap identity for a materialized list:
// length plus boundary keys. enough to detect replacement, reorder at
// the edges, and progressive growth, without hashing every item.
func listIdentity(items []displayItem) string {
	if len(items) == 0 {
		return "0"
	}
	return strconv.Itoa(len(items)) + "|" + items[0].key() + "|" + items[len(items)-1].key()
}

// buildWindowIndex computes the prefix-sum for items under mode.
func buildWindowIndex(items []displayItem, mode viewMode) *windowIndex {
	w := &windowIndex{
		listKey:     listIdentity(items),
		mode:        mode,
		offsets:     make([]int, len(items)+1),
		expandedIdx: -1,
	}
	total := 0
	for i, it := range items {
		w.offsets[i] = total
		total += itemHeight(it, mode)
	}
	w.offsets[len(items)] = total
	return w
}

// stale reports whether the index no longer matches the list or mode
// and must be rebuilt.
func (w *windowIndex) stale(items []displayItem, mode viewMode) bool {
	return w == nil || w.mode != mode || w.listKey != listIdentity(items)
}

// setExpanded records the single expanded item. O(1): offsets stay
// untouched, top() folds the extra height in on the fly.
func (w *windowIndex) setExpanded(idx, extraRows int) {
	if idx < 0 || idx >= len(w.offsets)-1 {
		w.expandedIdx = -1
		w.expandedExtra = 0
		return
	}
	w.expandedIdx = idx
	w.expandedExtra = extraRows
}

// top returns the first row of item i, accounting for expansion.
func (w *windowIndex) top(i int) int {
	t := w.offsets[i]
	if w.expandedIdx >= 0 && i > w.expandedIdx {
		t += w.expandedExtra
	}
	return t
}

// height returns the rendered height of item i, accounting for expansion.
func (w *windowIndex) height(i int) int {
	return w.top(i+1) - w.top(i)
}

// totalHeight returns the full scrollable height in rows.
func (w *windowIndex) totalHeight() int {
	return w.top(len(w.offsets) - 1)
}

// visibleRange returns the half-open index interval [start, end) whose
// rows intersect [scroll, scroll+viewport), widened by the overscan
// margin on both sides. the returned range always covers the viewport:
// every visible row belongs to some returned item.
func (w *windowIndex) visibleRange(scroll, viewport int) (start, end int) {
	n := len(w.offsets) - 1
	if n == 0 || viewport <= 0 {
		return 0, 0
	}
	if scroll < 0 {
		scroll = 0
	}

	// first item whose bottom edge is below the top of the viewport
	start = sort.Search(n, func(i int) bool {
		return w.top(i+1) > scroll
	})
	// first item that starts at or below the bottom of the viewport
	end = sort.Search(n, func(i int) bool {
		return w.top(i) >= scroll+viewport
	})

	start = max(0, start-overscanItems)
	end = min(n, end+overscanItems)
	return start, end
}

// maxScroll returns the largest useful scroll offset for a viewport.
func (w *windowIndex) maxScroll(viewport int) int {
	return max(0, w.totalHeight()-viewport)
}
