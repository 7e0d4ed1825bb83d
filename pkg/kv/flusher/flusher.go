// Package flusher drains the journal into the metadata index, mirrors
// dirty arena bytes to the mmap'd data file, and rewrites the dirty
// metadata blocks. This is the operation that makes a batch of writes
// durable and visible to readers.
package flusher

import (
	"fmt"
	"os"
	"sync"

	"github.com/laekov/polarkv/internal/logger"
	"github.com/laekov/polarkv/pkg/kv/arena"
	"github.com/laekov/polarkv/pkg/kv/index"
	"github.com/laekov/polarkv/pkg/kv/journal"
	"github.com/laekov/polarkv/pkg/kv/mmapfile"
)

// Flusher coordinates one storage engine's flush cycle.
//
// Callers must already hold the journal's lock before calling Flush;
// Flusher does not take that lock itself.
type Flusher struct {
	journal *journal.Journal
	index   *index.Index
	arena   *arena.Arena
	mm      *mmapfile.File
	metaF   *os.File

	cond  *sync.Cond
	condL sync.Mutex
	epoch uint64
}

// New constructs a Flusher wired to the given components.
func New(j *journal.Journal, ix *index.Index, ar *arena.Arena, mm *mmapfile.File, metaF *os.File) *Flusher {
	f := &Flusher{journal: j, index: ix, arena: ar, mm: mm, metaF: metaF}
	f.cond = sync.NewCond(&f.condL)
	return f
}

// Epoch returns the current flush generation. A writer that captures
// Epoch() before releasing the journal lock and later calls
// WaitEpoch(e+1) is guaranteed to be woken only after a flush that
// includes its slot has completed, never on a spurious wakeup.
func (f *Flusher) Epoch() uint64 {
	f.condL.Lock()
	defer f.condL.Unlock()
	return f.epoch
}

// WaitEpoch blocks until the flush generation reaches at least target.
func (f *Flusher) WaitEpoch(target uint64) {
	f.condL.Lock()
	defer f.condL.Unlock()
	for f.epoch < target {
		f.cond.Wait()
	}
}

// Flush drains every occupied journal slot into the index, grows and
// mirrors the mmap, rewrites dirty metadata blocks, advances the
// watermarks, and wakes any writers waiting on the resulting epoch.
// The caller must hold the journal lock.
func (f *Flusher) Flush() error {
	n := f.journal.Len()

	for i := 0; i < n; i++ {
		// Acquire-then-release synchronizes with the writer's in-flight
		// copy into the arena; by the time this returns, slot i's bytes
		// are durable in the arena.
		f.journal.Ready[i].Lock()
		f.journal.Ready[i].Unlock()

		e := f.journal.Entries[i]
		item := index.Item{Offset: e.Offset, KeySize: e.KeySize, ValSize: e.ValSize}
		key := f.arena.KeyAt(item)
		f.index.Upsert(key, item, f.arena)
	}

	curChunk, curOff := f.arena.CurrentWatermark()
	chunkSize := int64(f.arena.ChunkSize())
	target := (int64(curChunk) + 1) * chunkSize
	if err := f.mm.EnsureSize(target); err != nil {
		return fmt.Errorf("flusher: grow mmap: %w", err)
	}

	if err := f.mirrorDirtyChunks(curChunk, curOff, chunkSize); err != nil {
		return fmt.Errorf("flusher: mirror chunks: %w", err)
	}

	if err := f.rewriteDirtyBlocks(); err != nil {
		return fmt.Errorf("flusher: rewrite meta blocks: %w", err)
	}

	syncedChunk, syncedOff := f.arena.SyncedWatermark()
	f.arena.AdvanceSynced(curChunk, curOff)
	f.journal.Reset()

	logger.Debug("flush complete",
		"slots", n,
		"synced_chunk_from", syncedChunk,
		"synced_off_from", syncedOff,
		"synced_chunk_to", curChunk,
		"synced_off_to", curOff,
	)

	f.condL.Lock()
	f.epoch++
	f.cond.Broadcast()
	f.condL.Unlock()

	return nil
}

func (f *Flusher) mirrorDirtyChunks(curChunk, curOff int, chunkSize int64) error {
	syncedChunk, syncedOff := f.arena.SyncedWatermark()

	for c := syncedChunk; c <= curChunk; c++ {
		if c >= f.arena.NumChunks() {
			break
		}
		chunk := f.arena.ChunkAt(c)
		if !chunk.Resident() {
			continue
		}

		var start, length int
		switch {
		case c < curChunk:
			start, length = 0, int(chunkSize)
		case syncedChunk == curChunk && curOff > syncedOff:
			start, length = syncedOff, curOff-syncedOff
		default:
			start, length = 0, curOff
		}
		if length <= 0 {
			continue
		}

		pmem, err := f.arena.Borrow(c)
		if err != nil {
			return err
		}
		err = f.mm.WriteAt(pmem[start:start+length], int64(c)*chunkSize+int64(start))
		f.arena.Release(c)
		if err != nil {
			return err
		}
	}
	return f.mm.Sync()
}

func (f *Flusher) rewriteDirtyBlocks() error {
	buf := make([]byte, 0, 32*index.ItemSize)
	for _, block := range f.index.DirtyBlocks() {
		records := f.index.BlockRecords(block)
		if len(records) == 0 {
			continue
		}
		buf = buf[:0]
		for _, it := range records {
			var rec [index.ItemSize]byte
			it.Encode(rec[:])
			buf = append(buf, rec[:]...)
		}
		if _, err := f.metaF.WriteAt(buf, index.BlockOffset(block)); err != nil {
			return err
		}
	}
	return f.metaF.Sync()
}
