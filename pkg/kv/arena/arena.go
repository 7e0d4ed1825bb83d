// Package arena implements the chunked in-memory data arena: a flat
// byte-address space subdivided into fixed-size chunks, each either
// resident (an allocated in-RAM buffer) or paged-out (backed only by
// the mmap'd data file).
package arena

import (
	"fmt"
	"sync"
	"time"

	"github.com/laekov/polarkv/pkg/kv/index"
	"github.com/laekov/polarkv/pkg/kv/mmapfile"
)

// Chunk is one fixed-size subdivision of the arena.
type Chunk struct {
	mu        sync.Mutex
	pmem      []byte
	useCount  int
	lastTouch int64 // unix nanos
}

// UseCount returns the chunk's current outstanding-borrow count.
func (c *Chunk) UseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.useCount
}

// LastTouch returns the chunk's last-touch timestamp (unix nanos).
func (c *Chunk) LastTouch() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTouch
}

// Resident reports whether the chunk currently has a materialized buffer.
func (c *Chunk) Resident() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pmem != nil
}

// Arena owns the chunk directory and the allocation watermark.
type Arena struct {
	chunkSize int
	mm        *mmapfile.File

	mu       sync.RWMutex
	chunks   []*Chunk
	curChunk int
	curOff   int

	syncedChunk int
	syncedOff   int
}

// ErrRecordTooLarge is returned by Alloc when a record would not fit
// within a single chunk.
var ErrRecordTooLarge = fmt.Errorf("arena: record exceeds chunk size")

// New constructs an Arena over mm with the given chunkSize. loadedChunks
// registers that many paged-out directory entries (pmem == nil),
// matching an engine reopening an existing .data file; both watermarks
// start at loadedChunks.
func New(chunkSize int, mm *mmapfile.File, loadedChunks int) *Arena {
	a := &Arena{
		chunkSize:   chunkSize,
		mm:          mm,
		chunks:      make([]*Chunk, loadedChunks),
		curChunk:    loadedChunks,
		syncedChunk: loadedChunks,
	}
	for i := range a.chunks {
		a.chunks[i] = &Chunk{}
	}
	return a
}

// ChunkSize returns the configured chunk size.
func (a *Arena) ChunkSize() int { return a.chunkSize }

// CurrentWatermark returns (chunk, intra-chunk offset) of the next free
// allocation position.
func (a *Arena) CurrentWatermark() (int, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.curChunk, a.curOff
}

// SyncedWatermark returns (chunk, intra-chunk offset) of what the
// flusher has mirrored to mmap.
func (a *Arena) SyncedWatermark() (int, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.syncedChunk, a.syncedOff
}

// AdvanceSynced publishes a new synced watermark. Called only by the
// flusher, after mirroring dirty bytes to mmap.
func (a *Arena) AdvanceSynced(chunk, off int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.syncedChunk, a.syncedOff = chunk, off
}

// Alloc reserves n contiguous bytes and returns their arena offset.
// If n does not fit in the remainder of the current chunk, allocation
// moves to the start of the next chunk instead (wasting the tail).
func (a *Arena) Alloc(n int) (uint64, error) {
	if n > a.chunkSize {
		return 0, ErrRecordTooLarge
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.curOff+n > a.chunkSize {
		a.curChunk++
		a.curOff = 0
	}
	if a.curChunk >= len(a.chunks) {
		a.chunks = append(a.chunks, &Chunk{pmem: make([]byte, a.chunkSize)})
	} else if a.chunks[a.curChunk].pmem == nil {
		a.chunks[a.curChunk].pmem = make([]byte, a.chunkSize)
	}

	offset := uint64(a.curChunk)*uint64(a.chunkSize) + uint64(a.curOff)
	a.curOff += n
	return offset, nil
}

// ChunkAt returns the directory entry for chunk index idx.
func (a *Arena) ChunkAt(idx int) *Chunk {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.chunks[idx]
}

// NumChunks returns the size of the chunk directory.
func (a *Arena) NumChunks() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.chunks)
}

// WriteAt copies src directly into the chunk holding offset, at its
// intra-chunk position. Used by writers placing their just-allocated
// key/value bytes; the target chunk is always in [synced, current] and
// therefore cannot be recycled out from under the write.
func (a *Arena) WriteAt(offset uint64, src []byte) {
	chunkIdx := int(offset / uint64(a.chunkSize))
	intra := int(offset % uint64(a.chunkSize))
	chunk := a.ChunkAt(chunkIdx)
	copy(chunk.pmem[intra:intra+len(src)], src)
}

// KeyAt implements index.KeyReader: it resolves the durable key bytes
// for an installed Item from the arena, never from a caller-owned
// buffer. The owning chunk may have been evicted, so it pages the
// chunk in through the borrow protocol before copying the key out and
// releasing it; the returned slice is a copy, safe to use after the
// chunk is later recycled.
func (a *Arena) KeyAt(item index.Item) []byte {
	chunkIdx := int(item.Offset / uint64(a.chunkSize))
	intra := int(item.Offset % uint64(a.chunkSize))

	pmem, err := a.Borrow(chunkIdx)
	if err != nil {
		return nil
	}
	defer a.Release(chunkIdx)

	key := make([]byte, item.KeySize)
	copy(key, pmem[intra:intra+int(item.KeySize)])
	return key
}

// RecordAt returns the key and value byte slices for item, borrowing
// the owning chunk first (paging it in if it had been evicted) and
// leaving it borrowed; the caller must call Release(chunkIdx) once
// done reading.
func (a *Arena) RecordAt(item index.Item) (key, value []byte, chunkIdx int, err error) {
	chunkIdx = int(item.Offset / uint64(a.chunkSize))
	intra := int(item.Offset % uint64(a.chunkSize))

	pmem, err := a.Borrow(chunkIdx)
	if err != nil {
		return nil, nil, chunkIdx, err
	}
	key = pmem[intra : intra+int(item.KeySize)]
	value = pmem[intra+int(item.KeySize) : intra+int(item.KeySize)+int(item.ValSize)]
	return key, value, chunkIdx, nil
}

// Borrow implements the read-path borrow protocol (spec §4.7): it
// increments the chunk's use-count, paging the chunk in from mmap if
// it is currently evicted, and returns the resident buffer. The caller
// must call Release when done.
func (a *Arena) Borrow(idx int) ([]byte, error) {
	chunk := a.ChunkAt(idx)

	chunk.mu.Lock()
	defer chunk.mu.Unlock()

	chunk.useCount++
	if chunk.pmem == nil {
		buf := make([]byte, a.chunkSize)
		if err := a.mm.ReadAt(buf, int64(idx)*int64(a.chunkSize)); err != nil {
			chunk.useCount--
			return nil, fmt.Errorf("arena: page in chunk %d: %w", idx, err)
		}
		chunk.pmem = buf
	}
	chunk.lastTouch = time.Now().UnixNano()
	return chunk.pmem, nil
}

// Release ends a borrow started by Borrow.
func (a *Arena) Release(idx int) {
	chunk := a.ChunkAt(idx)
	chunk.mu.Lock()
	defer chunk.mu.Unlock()
	chunk.useCount--
}

// TryEvict frees chunk idx's resident buffer if its use-count is zero.
// Returns true if the chunk was evicted.
func (a *Arena) TryEvict(idx int) bool {
	chunk := a.ChunkAt(idx)
	chunk.mu.Lock()
	defer chunk.mu.Unlock()
	if chunk.useCount != 0 || chunk.pmem == nil {
		return false
	}
	chunk.pmem = nil
	return true
}
