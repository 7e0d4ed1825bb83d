// Package recycler implements LRU-by-timestamp eviction of resident
// arena chunk buffers once their count exceeds the configured resident
// budget, respecting per-chunk use-counts.
package recycler

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/laekov/polarkv/internal/logger"
	"github.com/laekov/polarkv/pkg/kv/arena"
)

// candidate pairs a chunk index with its last-touch timestamp, the
// basis for the oldest-first eviction order. Deliberately a plain
// sort rather than a partial-sort/nth_element selection: the source
// had several evolving variants and the simple approach is clearest.
type candidate struct {
	index     int
	lastTouch int64
}

// Recycler periodically evicts resident chunks older than the
// maxChunks most-recently-touched ones, considering only chunks below
// the arena's synced watermark (fully persisted, safe to drop).
type Recycler struct {
	arena     *arena.Arena
	interval  time.Duration
	maxChunks int

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Recycler that runs every interval and keeps at most
// maxChunks resident chunks.
func New(a *arena.Arena, interval time.Duration, maxChunks int) *Recycler {
	return &Recycler{
		arena:     a,
		interval:  interval,
		maxChunks: maxChunks,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the eviction loop in a new goroutine until ctx is
// cancelled or Stop is called.
func (r *Recycler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the loop to exit and waits for it to do so.
func (r *Recycler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Recycler) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep performs one eviction pass, evicting the oldest resident
// chunks below the synced watermark until at most maxChunks remain
// resident (best-effort: a chunk with a nonzero use-count is skipped
// and retried on the next sweep).
func (r *Recycler) sweep(ctx context.Context) {
	syncedChunk, _ := r.arena.SyncedWatermark()

	var candidates []candidate
	for i := 0; i < syncedChunk; i++ {
		chunk := r.arena.ChunkAt(i)
		if chunk.Resident() {
			candidates = append(candidates, candidate{index: i, lastTouch: chunk.LastTouch()})
		}
	}

	if len(candidates) <= r.maxChunks {
		return
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(a.lastTouch, b.lastTouch)
	})

	toEvict := candidates[:len(candidates)-r.maxChunks]
	evicted := 0
	for _, c := range toEvict {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if r.arena.TryEvict(c.index) {
			evicted++
		}
	}

	if evicted > 0 {
		logger.Debug("recycler evicted chunks", logger.Evicted(evicted), logger.Resident(len(candidates)-evicted))
	}
}
