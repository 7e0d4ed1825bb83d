// Package daemon runs the background loop that triggers a flush on an
// adaptive poll interval, coalescing partial batches so writers that
// never fill the journal still see bounded latency.
package daemon

import (
	"context"
	"time"

	"github.com/laekov/polarkv/internal/logger"
	"github.com/laekov/polarkv/pkg/kv/flusher"
	"github.com/laekov/polarkv/pkg/kv/journal"
)

// Daemon adapts its sleep interval between Min and Max: it halves the
// interval whenever it finds work to flush, and doubles it when idle,
// backing off to near-zero CPU.
type Daemon struct {
	journal  *journal.Journal
	flusher  *flusher.Flusher
	min, max time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Daemon. min and max bound the adaptive interval.
func New(j *journal.Journal, f *flusher.Flusher, min, max time.Duration) *Daemon {
	return &Daemon{
		journal: j,
		flusher: f,
		min:     min,
		max:     max,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs the poll loop in a new goroutine until ctx is cancelled or
// Stop is called.
func (d *Daemon) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop signals the loop to exit and waits for it to do so.
func (d *Daemon) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.doneCh)

	interval := d.min
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-timer.C:
		}

		d.journal.Lock()
		n := d.journal.Len()
		if n > 0 {
			if err := d.flusher.Flush(); err != nil {
				logger.Error("flush failed", logger.Err(err))
			}
			if interval /= 2; interval < d.min {
				interval = d.min
			}
		} else {
			if interval *= 2; interval > d.max {
				interval = d.max
			}
		}
		d.journal.Unlock()

		timer.Reset(interval)
	}
}
