// Package monitor implements the engine's optional diagnostics: a
// periodic stderr snapshot of resident chunk counts and flush
// throughput, plus a Prometheus registry for the same counters.
package monitor

import (
	"context"
	"time"

	"github.com/laekov/polarkv/internal/logger"
	"github.com/laekov/polarkv/pkg/kv/arena"
	"github.com/laekov/polarkv/pkg/kv/flusher"
)

// Monitor periodically reports engine diagnostics. Not required for
// correctness; disabling it changes no observable engine behavior
// other than the absence of these log lines and metrics.
type Monitor struct {
	arena    *arena.Arena
	flusher  *flusher.Flusher
	interval time.Duration

	metrics *Metrics

	lastEpoch    uint64
	lastResident int

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Monitor and registers its Prometheus collectors,
// reusing ones another engine in this process already registered.
func New(a *arena.Arena, f *flusher.Flusher, interval time.Duration) *Monitor {
	return &Monitor{
		arena:    a,
		flusher:  f,
		interval: interval,
		metrics:  newMetrics(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the reporting loop in a new goroutine until ctx is
// cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

// Stop signals the loop to exit and waits for it to do so.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	total := m.arena.NumChunks()
	resident := 0
	for i := 0; i < total; i++ {
		if m.arena.ChunkAt(i).Resident() {
			resident++
		}
	}

	epoch := m.flusher.Epoch()
	flushesSinceLast := epoch - m.lastEpoch
	m.lastEpoch = epoch
	m.lastResident = resident

	if m.metrics != nil {
		m.metrics.Observe(resident, total, flushesSinceLast)
	}

	logger.Info("engine stats",
		logger.Resident(resident),
		logger.Chunk(total),
		"flushes_since_last", flushesSinceLast,
	)
}
