// progressive materialization of large display lists.
//
// a bounded page is emitted in one shot. an unlimited page over the
// chunk threshold is revealed as a growing prefix, one chunk per
// scheduler tick, so the update loop gets to paint between chunks.
// starting a new run supersedes the previous one: a superseded run
// stops before its next send, and its generation token lets the
// consumer drop anything already in flight. each revealed state is a
// prefix of the next, until superseded.

package main

import "sync"

// materializeChunk is one revealed state of a run. items is the full
// prefix revealed so far, not a delta. done marks the final state.
type materializeChunk struct {
	gen   int64
	items []displayItem
	done  bool
}

// materializer owns the generation counter that serializes runs.
// the zero value is ready to use.
type materializer struct {
	mu     sync.Mutex
	gen    int64
	cancel chan struct{}
}

// start begins a new materialization run over items, superseding any
// run still in flight, and returns the channel the run's chunks
// arrive on together with the run's generation token. the channel is
// closed when the run finishes or is superseded.
func (m *materializer) start(items []displayItem, pageSize int) (<-chan materializeChunk, int64) {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	if m.cancel != nil {
		close(m.cancel)
	}
	cancel := make(chan struct{})
	m.cancel = cancel
	m.mu.Unlock()

	ch := make(chan materializeChunk, 1)
	go m.run(gen, items, pageSize, ch, cancel)
	return ch, gen
}

// generation returns the token of the most recently started run.
func (m *materializer) generation() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *materializer) superseded(gen int64) bool {
	return m.generation() != gen
}

func (m *materializer) run(gen int64, items []displayItem, pageSize int, ch chan materializeChunk, cancel chan struct{}) {
	defer close(ch)

	emit := func(prefix []displayItem, done bool) bool {
		select {
		case <-cancel:
			return false
		case ch <- materializeChunk{gen: gen, items: prefix, done: done}:
			return true
		}
	}

	// bounded pages are small by construction; short lists aren't
	// worth the chunking round trips either.
	if pageSize > 0 || len(items) <= materializeThreshold {
		emit(items, true)
		return
	}

	for off := 0; off < len(items); off += materializeChunkSize {
		if m.superseded(gen) {
			return
		}
		end := min(off+materializeChunkSize, len(items))
		if !emit(items[:end], end == len(items)) {
			return
		}
	}
}
