// Package journal implements the bounded ring of pending writes that
// coalesces concurrent writers under one latch before a batched flush.
package journal

import "sync"

// Entry is one pending write: the key/value sizes and the arena offset
// already reserved for it. The actual bytes live in the arena; the
// journal only remembers where.
type Entry struct {
	KeySize uint32
	ValSize uint32
	Offset  uint64
}

// Journal is a fixed-capacity array of Entry plus a parallel array of
// per-slot latches. The journal_mtx itself is exposed via Lock/Unlock
// so the write/flush protocol (which interleaves journal, arena and
// index operations) can hold it across calls into those packages,
// exactly as the original design requires.
type Journal struct {
	mu sync.Mutex

	Entries []Entry
	Ready   []sync.Mutex

	n   int
	max int
}

// New returns a Journal with capacity max slots.
func New(max int) *Journal {
	return &Journal{
		Entries: make([]Entry, max),
		Ready:   make([]sync.Mutex, max),
		max:     max,
	}
}

// Lock acquires journal_mtx.
func (j *Journal) Lock() { j.mu.Lock() }

// Unlock releases journal_mtx.
func (j *Journal) Unlock() { j.mu.Unlock() }

// Max returns the journal's capacity.
func (j *Journal) Max() int { return j.max }

// Len returns n_journal, the number of currently-occupied slots.
// Callers must hold the journal lock.
func (j *Journal) Len() int { return j.n }

// Reserve claims the next slot, recording e, and returns its index and
// whether the journal is now full. Callers must hold the journal lock.
func (j *Journal) Reserve(e Entry) (slot int, full bool) {
	slot = j.n
	j.Entries[slot] = e
	j.n++
	return slot, j.n >= j.max
}

// Reset clears n_journal back to zero after a flush has consumed every
// slot. Callers must hold the journal lock.
func (j *Journal) Reset() { j.n = 0 }
