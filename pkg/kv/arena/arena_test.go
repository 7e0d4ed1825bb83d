package arena

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laekov/polarkv/pkg/kv/index"
	"github.com/laekov/polarkv/pkg/kv/mmapfile"
)

func newTestArena(t *testing.T, chunkSize int) *Arena {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.data")
	mm, err := mmapfile.Open(path, int64(chunkSize))
	require.NoError(t, err)
	t.Cleanup(func() { mm.Close() })
	return New(chunkSize, mm, 0)
}

func TestAllocWithinChunk(t *testing.T) {
	a := newTestArena(t, 1024)

	off1, err := a.Alloc(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off1)

	off2, err := a.Alloc(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), off2)
}

func TestAllocCrossesChunkBoundary(t *testing.T) {
	a := newTestArena(t, 100)

	_, err := a.Alloc(60)
	require.NoError(t, err)

	// 60 + 60 > 100, so this allocation must start a new chunk, wasting
	// the tail of chunk 0.
	off, err := a.Alloc(60)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), off)

	chunk, off2 := a.CurrentWatermark()
	assert.Equal(t, 1, chunk)
	assert.Equal(t, 60, off2)
}

func TestAllocRejectsOversizedRecord(t *testing.T) {
	a := newTestArena(t, 100)
	_, err := a.Alloc(101)
	assert.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestAllocExactlyFillsChunk(t *testing.T) {
	a := newTestArena(t, 100)

	_, err := a.Alloc(100)
	require.NoError(t, err)

	chunk, off := a.CurrentWatermark()
	assert.Equal(t, 0, chunk)
	assert.Equal(t, 100, off)

	// The next allocation, however small, must land in chunk 1.
	next, err := a.Alloc(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), next)
}

func TestWriteAtAndKeyAt(t *testing.T) {
	a := newTestArena(t, 1024)

	off, err := a.Alloc(10)
	require.NoError(t, err)

	a.WriteAt(off, []byte("hello"))
	a.WriteAt(off+5, []byte("world"))

	chunk := a.ChunkAt(0)
	assert.True(t, chunk.Resident())

	assert.Equal(t, "helloworld", string(a.KeyAt(index.Item{Offset: off, KeySize: 10})))
}

func TestBorrowPagesInEvictedChunk(t *testing.T) {
	a := newTestArena(t, 1024)

	off, err := a.Alloc(5)
	require.NoError(t, err)
	a.WriteAt(off, []byte("hello"))

	a.AdvanceSynced(0, 5)
	// sync the resident bytes to mmap directly, simulating what the
	// flusher would do, so paging back in reads real data.
	pmem, err := a.Borrow(0)
	require.NoError(t, err)
	require.NoError(t, a.mm.WriteAt(pmem[:5], 0))
	a.Release(0)

	require.True(t, a.TryEvict(0))
	assert.False(t, a.ChunkAt(0).Resident())

	buf, err := a.Borrow(0)
	require.NoError(t, err)
	defer a.Release(0)
	assert.Equal(t, "hello", string(buf[:5]))
}

func TestTryEvictRespectsUseCount(t *testing.T) {
	a := newTestArena(t, 1024)
	_, err := a.Alloc(5)
	require.NoError(t, err)

	_, err = a.Borrow(0)
	require.NoError(t, err)

	assert.False(t, a.TryEvict(0), "chunk with outstanding borrow must not be evicted")

	a.Release(0)
	assert.True(t, a.TryEvict(0))
}
