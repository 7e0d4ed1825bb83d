package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeArena stores key bytes verbatim so tests can exercise Find/Upsert
// without pulling in the real arena package.
type fakeArena struct {
	records map[uint64][]byte
}

func newFakeArena() *fakeArena {
	return &fakeArena{records: make(map[uint64][]byte)}
}

func (a *fakeArena) put(offset uint64, key []byte) {
	owned := make([]byte, len(key))
	copy(owned, key)
	a.records[offset] = owned
}

func (a *fakeArena) KeyAt(item Item) []byte {
	return a.records[item.Offset][:item.KeySize]
}

func TestUpsertThenFind(t *testing.T) {
	ar := newFakeArena()
	ix := New()

	ar.put(100, []byte("apple"))
	slot := ix.Upsert([]byte("apple"), Item{Offset: 100, KeySize: 5, ValSize: 1}, ar)
	assert.Equal(t, 0, slot)

	got, ok := ix.Find([]byte("apple"), ar)
	require.True(t, ok)
	assert.Equal(t, slot, got)

	_, ok = ix.Find([]byte("missing"), ar)
	assert.False(t, ok)
}

func TestUpsertOverwritesSameSlot(t *testing.T) {
	ar := newFakeArena()
	ix := New()

	ar.put(100, []byte("apple"))
	slot1 := ix.Upsert([]byte("apple"), Item{Offset: 100, KeySize: 5, ValSize: 1}, ar)

	ar.put(200, []byte("apple"))
	slot2 := ix.Upsert([]byte("apple"), Item{Offset: 200, KeySize: 5, ValSize: 2}, ar)

	assert.Equal(t, slot1, slot2)
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, uint64(200), ix.ItemAt(slot2).Offset)
}

func TestShortAndLongKeysBothWork(t *testing.T) {
	ar := newFakeArena()
	ix := New()

	ar.put(0, []byte("short1"))
	ar.put(100, []byte("a-very-long-key-indeed"))

	s1 := ix.Upsert([]byte("short1"), Item{Offset: 0, KeySize: 6}, ar)
	s2 := ix.Upsert([]byte("a-very-long-key-indeed"), Item{Offset: 100, KeySize: 22}, ar)

	assert.NotEqual(t, s1, s2)

	found1, ok := ix.Find([]byte("short1"), ar)
	require.True(t, ok)
	assert.Equal(t, s1, found1)

	found2, ok := ix.Find([]byte("a-very-long-key-indeed"), ar)
	require.True(t, ok)
	assert.Equal(t, s2, found2)
}

func TestDirtyBlocksTracksAndClears(t *testing.T) {
	ar := newFakeArena()
	ix := New()

	for i := 0; i < 40; i++ {
		key := []byte{byte(i)}
		ar.put(uint64(i), key)
		ix.Upsert(key, Item{Offset: uint64(i), KeySize: 1}, ar)
	}

	blocks := ix.DirtyBlocks()
	assert.ElementsMatch(t, []int{0, 1}, blocks)

	// a second call with no intervening writes sees nothing dirty
	assert.Empty(t, ix.DirtyBlocks())
}

func TestBlockRecordsClampsToLength(t *testing.T) {
	ar := newFakeArena()
	ix := New()

	for i := 0; i < 5; i++ {
		key := []byte{byte(i)}
		ar.put(uint64(i), key)
		ix.Upsert(key, Item{Offset: uint64(i), KeySize: 1}, ar)
	}

	recs := ix.BlockRecords(0)
	assert.Len(t, recs, 5)

	assert.Nil(t, ix.BlockRecords(1))
}

func TestLoadAllRebuildsTables(t *testing.T) {
	ar := newFakeArena()
	ar.put(0, []byte("apple"))
	ar.put(10, []byte("banana-split-key"))

	items := []Item{
		{Offset: 0, KeySize: 5, ValSize: 1},
		{Offset: 10, KeySize: 16, ValSize: 2},
	}

	ix := New()
	ix.LoadAll(items, ar)

	assert.Equal(t, 2, ix.Len())

	slot, ok := ix.Find([]byte("apple"), ar)
	require.True(t, ok)
	assert.Equal(t, 0, slot)

	slot, ok = ix.Find([]byte("banana-split-key"), ar)
	require.True(t, ok)
	assert.Equal(t, 1, slot)
}

func TestItemEncodeDecodeRoundTrip(t *testing.T) {
	it := Item{Offset: 0x1122334455667788, KeySize: 42, ValSize: 99}
	buf := make([]byte, ItemSize)
	it.Encode(buf)

	got := Decode(buf)
	assert.Equal(t, it, got)
}
