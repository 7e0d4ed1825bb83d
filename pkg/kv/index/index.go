// Package index implements the metadata index: a mapping from key bytes
// to a slot in a dense, append-only array of fixed-layout records, split
// by key length for efficiency.
package index

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/laekov/polarkv/pkg/kv/view"
)

// ItemSize is the on-disk and in-memory size of one Item record.
const ItemSize = 16

// Item is a fixed-layout metadata record: an arena offset plus the key
// and value sizes needed to slice the record back out of the arena.
type Item struct {
	Offset  uint64
	KeySize uint32
	ValSize uint32
}

// Encode writes it into buf, which must be at least ItemSize bytes.
func (it Item) Encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], it.Offset)
	binary.LittleEndian.PutUint32(buf[8:12], it.KeySize)
	binary.LittleEndian.PutUint32(buf[12:16], it.ValSize)
}

// Decode reads an Item from buf, which must be at least ItemSize bytes.
func Decode(buf []byte) Item {
	return Item{
		Offset:  binary.LittleEndian.Uint64(buf[0:8]),
		KeySize: binary.LittleEndian.Uint32(buf[8:12]),
		ValSize: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// shortKeyThreshold is the key length boundary between the short-key
// hashed table and the owned-bytes table for longer keys.
const shortKeyThreshold = 8

// blockSize is the number of slots per dirty-tracking block; the
// flusher rewrites only the .meta blocks a flush touched.
const blockSize = 32

// Index maps key bytes to slot indices into a dense meta[] array.
//
// Short keys (<= 8 bytes) are hashed into a uint64 bucket key via
// View.Hash; because the hash isn't guaranteed collision-free, a
// bucket can hold more than one candidate slot, and lookups must
// always confirm the match against the slot's durable arena key bytes
// (never against the caller's input buffer, see KeyReader).
type Index struct {
	mu    sync.RWMutex
	meta  []Item
	short map[uint64][]int
	long  map[string]int
	dirty map[int]struct{}
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		short: make(map[uint64][]int),
		long:  make(map[string]int),
		dirty: make(map[int]struct{}),
	}
}

// KeyReader resolves the durable key bytes for an already-installed
// slot, so Find/Upsert can disambiguate short-key bucket collisions
// without ever touching a caller-owned buffer.
type KeyReader interface {
	KeyAt(item Item) []byte
}

// shortKeyHash computes the short-key table's bucket key. It goes
// through the shared byte-view hash rather than hand-rolling one, so
// collision handling in findLocked/Upsert/LoadAll is the only place
// that needs to reason about non-unique bucket keys.
func shortKeyHash(key []byte) uint64 {
	return view.Of(key).Hash()
}

// Find looks up key. key is only hashed and compared, never retained,
// so it may be a caller's buffer; a short-key match is confirmed
// against the slot's durable arena bytes read back through kr.
// Returns the slot index and true, or (0, false) if absent.
func (ix *Index) Find(key []byte, kr KeyReader) (int, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.findLocked(key, kr)
}

func (ix *Index) findLocked(key []byte, kr KeyReader) (int, bool) {
	if len(key) <= shortKeyThreshold {
		bucket := ix.short[shortKeyHash(key)]
		for _, slot := range bucket {
			item := ix.meta[slot]
			if int(item.KeySize) == len(key) && bytes.Equal(kr.KeyAt(item), key) {
				return slot, true
			}
		}
		return 0, false
	}
	slot, ok := ix.long[string(key)]
	return slot, ok
}

// Upsert installs item under key if key is new, or overwrites the
// existing slot's item in place if key already has one. Returns the
// slot index. key must be durable arena bytes, matching item's offset
// and key size.
func (ix *Index) Upsert(key []byte, item Item, kr KeyReader) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if slot, ok := ix.findLocked(key, kr); ok {
		ix.meta[slot] = item
		ix.markDirtyLocked(slot)
		return slot
	}

	slot := len(ix.meta)
	ix.meta = append(ix.meta, item)
	if len(key) <= shortKeyThreshold {
		h := shortKeyHash(key)
		ix.short[h] = append(ix.short[h], slot)
	} else {
		ix.long[string(key)] = slot
	}
	ix.markDirtyLocked(slot)
	return slot
}

func (ix *Index) markDirtyLocked(slot int) {
	ix.dirty[slot>>5] = struct{}{}
}

// Len returns the number of distinct keys ever written.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.meta)
}

// ItemAt returns the Item stored at slot.
func (ix *Index) ItemAt(slot int) Item {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.meta[slot]
}

// DirtyBlocks returns the set of block indices (slot>>5) touched since
// the previous call to DirtyBlocks, and clears the set.
func (ix *Index) DirtyBlocks() []int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	blocks := make([]int, 0, len(ix.dirty))
	for b := range ix.dirty {
		blocks = append(blocks, b)
	}
	ix.dirty = make(map[int]struct{})
	return blocks
}

// BlockRecords returns the Item records belonging to block (slots
// [block*32, block*32+32) clamped to the current length), ready for
// encoding to the .meta file at byte offset block*32*ItemSize.
func (ix *Index) BlockRecords(block int) []Item {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	start := block * blockSize
	if start >= len(ix.meta) {
		return nil
	}
	end := start + blockSize
	if end > len(ix.meta) {
		end = len(ix.meta)
	}
	out := make([]Item, end-start)
	copy(out, ix.meta[start:end])
	return out
}

// BlockOffset returns the byte offset of block within the .meta file.
func BlockOffset(block int) int64 {
	return int64(block) * blockSize * ItemSize
}

// LoadAll replaces the index contents with items loaded from an
// existing .meta file, rebuilding the short/long key tables against
// kr (which must resolve key bytes from the already-populated arena).
func (ix *Index) LoadAll(items []Item, kr KeyReader) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.meta = append([]Item(nil), items...)
	ix.short = make(map[uint64][]int)
	ix.long = make(map[string]int)
	ix.dirty = make(map[int]struct{})

	for slot, item := range ix.meta {
		key := kr.KeyAt(item)
		if len(key) <= shortKeyThreshold {
			h := shortKeyHash(key)
			ix.short[h] = append(ix.short[h], slot)
		} else {
			ix.long[string(key)] = slot
		}
	}
}
