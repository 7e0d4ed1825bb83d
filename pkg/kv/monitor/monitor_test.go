package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laekov/polarkv/pkg/kv/arena"
	"github.com/laekov/polarkv/pkg/kv/flusher"
	"github.com/laekov/polarkv/pkg/kv/index"
	"github.com/laekov/polarkv/pkg/kv/journal"
	"github.com/laekov/polarkv/pkg/kv/mmapfile"
)

func newTestMonitor(t *testing.T, interval time.Duration) (*arena.Arena, *flusher.Flusher, *Monitor) {
	t.Helper()
	dir := t.TempDir()

	mm, err := mmapfile.Open(filepath.Join(dir, "test.data"), 256)
	require.NoError(t, err)
	t.Cleanup(func() { mm.Close() })

	metaF, err := os.OpenFile(filepath.Join(dir, "test.meta"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	t.Cleanup(func() { metaF.Close() })

	ar := arena.New(256, mm, 0)
	ix := index.New()
	j := journal.New(4)
	f := flusher.New(j, ix, ar, mm, metaF)
	m := New(ar, f, interval)

	return ar, f, m
}

func TestTickRecordsResidentAndFlushDelta(t *testing.T) {
	ar, f, m := newTestMonitor(t, time.Hour)

	_, err := ar.Alloc(10)
	require.NoError(t, err)
	require.NoError(t, f.Flush())

	m.tick()

	assert.Equal(t, 1, m.lastResident)
	assert.Equal(t, uint64(1), m.lastEpoch)
}

func TestStartStopRunsAtLeastOneTick(t *testing.T) {
	_, _, m := newTestMonitor(t, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	m.Stop()
}
