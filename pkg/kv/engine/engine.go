// Package engine implements the public facade of the embeddable
// key-value store: Open, Write, Read, the Range stub, and Close.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/laekov/polarkv/internal/logger"
	"github.com/laekov/polarkv/pkg/kv/arena"
	"github.com/laekov/polarkv/pkg/kv/daemon"
	"github.com/laekov/polarkv/pkg/kv/flusher"
	"github.com/laekov/polarkv/pkg/kv/index"
	"github.com/laekov/polarkv/pkg/kv/journal"
	"github.com/laekov/polarkv/pkg/kv/mmapfile"
	"github.com/laekov/polarkv/pkg/kv/monitor"
	"github.com/laekov/polarkv/pkg/kv/recycler"
	"github.com/laekov/polarkv/pkg/kv/view"
)

// ErrNotFound is returned by Read when key is absent from the index.
var ErrNotFound = errors.New("engine: key not found")

// ErrRecordTooLarge is returned by Write when key+value would not fit
// in a single chunk.
var ErrRecordTooLarge = arena.ErrRecordTooLarge

// ErrClosed is returned by Write/Read after Close.
var ErrClosed = errors.New("engine: closed")

// Options configures an Engine at Open time.
type Options struct {
	ChunkSize         int
	MaxJournal        int
	MaxResidentChunks int
	RecycleInterval   time.Duration
	DaemonMinInterval time.Duration
	DaemonMaxInterval time.Duration
	EnableMonitor     bool
	MonitorInterval   time.Duration
}

// DefaultOptions mirrors the original engine's compile-time constants.
func DefaultOptions() Options {
	return Options{
		ChunkSize:         32 << 20,
		MaxJournal:        1 << 10,
		MaxResidentChunks: 256,
		RecycleInterval:   500 * time.Millisecond,
		DaemonMinInterval: 8 * time.Microsecond,
		DaemonMaxInterval: 1024 * time.Microsecond,
		MonitorInterval:   time.Second,
	}
}

// Engine is an open key-value database.
type Engine struct {
	opts Options

	journal *journal.Journal
	index   *index.Index
	arena   *arena.Arena
	mm      *mmapfile.File
	metaF   *os.File
	flusher *flusher.Flusher
	daemon  *daemon.Daemon
	recycler *recycler.Recycler
	monitor *monitor.Monitor

	cancel context.CancelFunc

	closeMu sync.Mutex
	closed  bool
}

// Open opens (or creates) the database at the given name: name+".meta"
// and name+".data".
func Open(name string, opts Options) (*Engine, error) {
	metaPath := name + ".meta"
	dataPath := name + ".data"

	loadedChunks, items, err := loadMeta(metaPath, opts.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("engine: open %q: %w", metaPath, err)
	}

	metaF, err := os.OpenFile(metaPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("engine: open %q: %w", metaPath, err)
	}

	initialSize := int64(loadedChunks) * int64(opts.ChunkSize)
	if initialSize == 0 {
		initialSize = int64(opts.ChunkSize)
	}
	mm, err := mmapfile.Open(dataPath, initialSize)
	if err != nil {
		metaF.Close()
		return nil, fmt.Errorf("engine: open %q: %w", dataPath, err)
	}

	ar := arena.New(opts.ChunkSize, mm, loadedChunks)
	ix := index.New()
	ix.LoadAll(items, ar)

	j := journal.New(opts.MaxJournal)
	fl := flusher.New(j, ix, ar, mm, metaF)

	d := daemon.New(j, fl, opts.DaemonMinInterval, opts.DaemonMaxInterval)
	rc := recycler.New(ar, opts.RecycleInterval, opts.MaxResidentChunks)

	var mon *monitor.Monitor
	if opts.EnableMonitor {
		mon = monitor.New(ar, fl, opts.MonitorInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		opts:     opts,
		journal:  j,
		index:    ix,
		arena:    ar,
		mm:       mm,
		metaF:    metaF,
		flusher:  fl,
		daemon:   d,
		recycler: rc,
		monitor:  mon,
		cancel:   cancel,
	}

	d.Start(ctx)
	rc.Start(ctx)
	if mon != nil {
		mon.Start(ctx)
	}

	logger.Info("engine opened", "name", name, logger.Chunk(loadedChunks))
	return e, nil
}

// loadMeta reads an existing .meta file, if any, returning the number
// of chunks its records imply were already on disk plus the decoded
// items. A missing file is not an error: it means a fresh database.
func loadMeta(path string, chunkSize int) (int, []index.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, nil
		}
		return 0, nil, err
	}

	count := len(data) / index.ItemSize
	items := make([]index.Item, count)
	maxOffset := uint64(0)
	for i := 0; i < count; i++ {
		items[i] = index.Decode(data[i*index.ItemSize:])
		end := items[i].Offset + uint64(items[i].KeySize) + uint64(items[i].ValSize)
		if end > maxOffset {
			maxOffset = end
		}
	}

	loadedChunks := 0
	if maxOffset > 0 {
		loadedChunks = int((maxOffset + uint64(chunkSize) - 1) / uint64(chunkSize))
	}
	return loadedChunks, items, nil
}

// Write stores value under key, returning once a flush has made the
// write durable and visible to readers.
func (e *Engine) Write(key, value []byte) error {
	if e.isClosed() {
		return ErrClosed
	}
	if len(key)+len(value) > e.opts.ChunkSize {
		return ErrRecordTooLarge
	}

	e.journal.Lock()

	offset, err := e.arena.Alloc(len(key) + len(value))
	if err != nil {
		e.journal.Unlock()
		return fmt.Errorf("engine: write: %w", err)
	}

	slot, full := e.journal.Reserve(journal.Entry{
		KeySize: uint32(len(key)),
		ValSize: uint32(len(value)),
		Offset:  offset,
	})

	if !full {
		e.journal.Ready[slot].Lock()
		targetEpoch := e.flusher.Epoch() + 1
		e.journal.Unlock()

		e.copyRecord(offset, key, value)
		e.journal.Ready[slot].Unlock()

		e.flusher.WaitEpoch(targetEpoch)
		return nil
	}

	e.copyRecord(offset, key, value)
	if err := e.flusher.Flush(); err != nil {
		logger.Error("flush failed", logger.Err(err))
	}
	e.journal.Unlock()
	return nil
}

func (e *Engine) copyRecord(offset uint64, key, value []byte) {
	e.arena.WriteAt(offset, key)
	e.arena.WriteAt(offset+uint64(len(key)), value)
}

// Read looks up key and copies its latest flushed value into a freshly
// allocated buffer. Returns ErrNotFound if key has never been flushed.
func (e *Engine) Read(key []byte) ([]byte, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}

	slot, ok := e.index.Find(key, e.arena)
	if !ok {
		return nil, ErrNotFound
	}
	item := e.index.ItemAt(slot)

	_, value, chunkIdx, err := e.arena.RecordAt(item)
	if err != nil {
		return nil, fmt.Errorf("engine: read: %w", err)
	}
	out := make([]byte, len(value))
	copy(out, value)
	e.arena.Release(chunkIdx)
	return out, nil
}

// Stats is a snapshot of engine diagnostics: key count, total and
// resident chunk counts, and the chunk indices of both watermarks.
type Stats struct {
	Keys           int
	TotalChunks    int
	ResidentChunks int
	CurrentChunk   int
	SyncedChunk    int
}

// Stats returns a snapshot of the engine's current diagnostics.
func (e *Engine) Stats() Stats {
	total := e.arena.NumChunks()
	resident := 0
	for i := 0; i < total; i++ {
		if e.arena.ChunkAt(i).Resident() {
			resident++
		}
	}
	curChunk, _ := e.arena.CurrentWatermark()
	syncedChunk, _ := e.arena.SyncedWatermark()
	return Stats{
		Keys:           e.index.Len(),
		TotalChunks:    total,
		ResidentChunks: resident,
		CurrentChunk:   curChunk,
		SyncedChunk:    syncedChunk,
	}
}

// Range is a stub: it validates its arguments and returns nil without
// iterating any records. A real range scan is out of scope.
func (e *Engine) Range(lower, upper view.View, visit func(key, value []byte) bool) error {
	if e.isClosed() {
		return ErrClosed
	}
	if lower.Size() > 0 && upper.Size() > 0 && lower.Compare(upper) > 0 {
		return fmt.Errorf("engine: range: lower bound > upper bound")
	}
	_ = visit
	return nil
}

func (e *Engine) isClosed() bool {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()
	return e.closed
}

// Close forces a final flush, stops the background threads, and
// releases all resources. Safe to call once; a second call is a no-op.
func (e *Engine) Close() error {
	e.closeMu.Lock()
	if e.closed {
		e.closeMu.Unlock()
		return nil
	}
	e.closed = true
	e.closeMu.Unlock()

	e.journal.Lock()
	err := e.flusher.Flush()
	e.journal.Unlock()

	e.cancel()
	e.daemon.Stop()
	e.recycler.Stop()
	if e.monitor != nil {
		e.monitor.Stop()
	}

	if mmErr := e.mm.Close(); mmErr != nil && err == nil {
		err = mmErr
	}
	if metaErr := e.metaF.Close(); metaErr != nil && err == nil {
		err = metaErr
	}

	logger.Info("engine closed")
	return err
}
