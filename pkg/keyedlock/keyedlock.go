// Package keyedlock provides per-key mutual exclusion with
// reference-counted lock lifetimes. A lock entry exists only while at
// least one caller references its key, so the table never grows under
// sustained varied traffic.
package keyedlock

import (
	"context"
	"sync"
)

// Table maps keys to exclusive lock handles.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	refs int
	// sem is a one-slot channel semaphore; holding the token means
	// holding the lock. Channel waits are context-cancellable.
	sem chan struct{}
}

// Handle represents one held or pending reference to a keyed lock.
type Handle struct {
	tbl  *Table
	key  string
	held bool
}

// New creates an empty lock table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Acquire blocks until the lock for key is held or ctx is done. The
// entry is created lazily on first use. On error no reference is kept.
func (t *Table) Acquire(ctx context.Context, key string) (*Handle, error) {
	t.mu.Lock()

	e, ok := t.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		t.entries[key] = e
	}
	e.refs++

	t.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return &Handle{tbl: t, key: key, held: true}, nil
	case <-ctx.Done():
		t.unref(key)

		return nil, ctx.Err()
	}
}

// Release returns the lock and drops the reference. When the reference
// count reaches zero the entry is removed from the table. Releasing a
// handle twice is a no-op.
func (h *Handle) Release() {
	if h == nil || !h.held {
		return
	}
	h.held = false

	h.tbl.mu.Lock()
	e := h.tbl.entries[h.key]
	h.tbl.mu.Unlock()

	if e != nil {
		<-e.sem
	}

	h.tbl.unref(h.key)
}

// Len returns the number of live lock entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

func (t *Table) unref(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return
	}

	e.refs--
	if e.refs <= 0 {
		delete(t.entries, key)
	}
}
