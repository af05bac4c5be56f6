package intake

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatcher runs detached tasks behind a counting semaphore. The admission
// path returns immediately; the spawned goroutine blocks for a slot before
// doing any expensive work and releases it unconditionally, panics included.
// Tasks are never cancelled once admitted and may complete in any order.
type Dispatcher struct {
	slots    chan struct{}
	inflight prometheus.Gauge // may be nil
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given concurrency limit.
// The gauge is optional; pass nil to skip occupancy tracking.
func NewDispatcher(size int, inflight prometheus.Gauge, logger *slog.Logger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		slots:    make(chan struct{}, size),
		inflight: inflight,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch spawns fn as a detached task. It never blocks the caller: slot
// acquisition happens inside the goroutine, after the cheap admission
// decision and before any expensive collaborator call.
func (d *Dispatcher) Dispatch(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		d.slots <- struct{}{}
		defer func() { <-d.slots }()

		if d.inflight != nil {
			d.inflight.Inc()
			defer d.inflight.Dec()
		}

		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("detached task panicked", "panic", r)
			}
		}()

		fn()
	}()
}

// Wait blocks until all dispatched tasks have finished or the timeout
// elapses. Used during graceful shutdown; a zero timeout waits forever.
func (d *Dispatcher) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return true
	}

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
