package flusher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laekov/polarkv/pkg/kv/arena"
	"github.com/laekov/polarkv/pkg/kv/index"
	"github.com/laekov/polarkv/pkg/kv/journal"
	"github.com/laekov/polarkv/pkg/kv/mmapfile"
)

const testChunkSize = 256

type testRig struct {
	journal *journal.Journal
	index   *index.Index
	arena   *arena.Arena
	mm      *mmapfile.File
	metaF   *os.File
	flusher *Flusher
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	dir := t.TempDir()

	mm, err := mmapfile.Open(filepath.Join(dir, "test.data"), testChunkSize)
	require.NoError(t, err)
	t.Cleanup(func() { mm.Close() })

	metaF, err := os.OpenFile(filepath.Join(dir, "test.meta"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	t.Cleanup(func() { metaF.Close() })

	ar := arena.New(testChunkSize, mm, 0)
	ix := index.New()
	j := journal.New(4)
	f := New(j, ix, ar, mm, metaF)

	return &testRig{journal: j, index: ix, arena: ar, mm: mm, metaF: metaF, flusher: f}
}

// writeRecord mimics the engine's write path closely enough to drive the
// flusher: allocate, copy bytes in, reserve a journal slot, and leave the
// slot's ready latch unlocked so Flush can drain it immediately.
func (r *testRig) writeRecord(t *testing.T, key, value []byte) {
	t.Helper()
	off, err := r.arena.Alloc(len(key) + len(value))
	require.NoError(t, err)
	r.arena.WriteAt(off, key)
	r.arena.WriteAt(off+uint64(len(key)), value)

	slot, _ := r.journal.Reserve(journal.Entry{
		KeySize: uint32(len(key)),
		ValSize: uint32(len(value)),
		Offset:  off,
	})
	r.journal.Ready[slot].Lock()
	r.journal.Ready[slot].Unlock()
}

func TestFlushInstallsIndexEntries(t *testing.T) {
	r := newTestRig(t)
	r.writeRecord(t, []byte("apple"), []byte("1"))
	r.writeRecord(t, []byte("banana"), []byte("22"))

	require.NoError(t, r.flusher.Flush())

	slot, ok := r.index.Find([]byte("apple"), r.arena)
	require.True(t, ok)
	item := r.index.ItemAt(slot)
	assert.Equal(t, uint32(5), item.KeySize)
	assert.Equal(t, uint32(1), item.ValSize)
}

func TestFlushMirrorsBytesToMmap(t *testing.T) {
	r := newTestRig(t)
	r.writeRecord(t, []byte("k"), []byte("v"))

	require.NoError(t, r.flusher.Flush())

	buf := make([]byte, 2)
	require.NoError(t, r.mm.ReadAt(buf, 0))
	assert.Equal(t, "kv", string(buf))
}

func TestFlushAdvancesSyncedWatermarkAndResetsJournal(t *testing.T) {
	r := newTestRig(t)
	r.writeRecord(t, []byte("k"), []byte("v"))
	require.Equal(t, 1, r.journal.Len())

	require.NoError(t, r.flusher.Flush())

	assert.Equal(t, 0, r.journal.Len())
	curChunk, curOff := r.arena.CurrentWatermark()
	syncedChunk, syncedOff := r.arena.SyncedWatermark()
	assert.Equal(t, curChunk, syncedChunk)
	assert.Equal(t, curOff, syncedOff)
}

func TestFlushBumpsEpochAndWakesWaiters(t *testing.T) {
	r := newTestRig(t)
	target := r.flusher.Epoch() + 1

	done := make(chan struct{})
	go func() {
		r.flusher.WaitEpoch(target)
		close(done)
	}()

	r.writeRecord(t, []byte("k"), []byte("v"))
	require.NoError(t, r.flusher.Flush())

	<-done // must not hang
}

func TestFlushRewritesDirtyMetaBlocks(t *testing.T) {
	r := newTestRig(t)
	r.writeRecord(t, []byte("a"), []byte("1"))
	require.NoError(t, r.flusher.Flush())

	slot, ok := r.index.Find([]byte("a"), r.arena)
	require.True(t, ok)
	item := r.index.ItemAt(slot)

	var rec [index.ItemSize]byte
	off := index.BlockOffset(slot >> 5)
	_, err := r.metaF.ReadAt(rec[:], off+int64(slot%32)*index.ItemSize)
	require.NoError(t, err)

	decoded := index.Decode(rec[:])
	assert.Equal(t, item, decoded)
}
