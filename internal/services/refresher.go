package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// WorklistSink is where refreshed worklists go — in production the websocket
// hub, which also knows which collectors are live
type WorklistSink interface {
	ConnectedCollectorIDs() []string
	PushWorklist(collectorID string, wl *Worklist)
}

// Refresher drives the periodic dispatch loop: every interval it rebuilds the
// worklist of every connected collector and pushes it out. Start spawns the
// loop; Stop always cancels the ticker, so a torn-down refresher leaks
// nothing.
type Refresher struct {
	dispatcher *Dispatcher
	sink       WorklistSink
	interval   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(dispatcher *Dispatcher, sink WorklistSink, interval time.Duration) *Refresher {
	return &Refresher{
		dispatcher: dispatcher,
		sink:       sink,
		interval:   interval,
	}
}

// Start begins the refresh loop. Calling Start on a running refresher is a
// no-op.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(ctx, r.done)
	log.Printf("🔄 [DISPATCH] Refresh loop started (every %s)", r.interval)
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Println("🔴 [DISPATCH] Refresh loop stopped")
}

// Running reports whether the loop is live
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshAll()
		}
	}
}

// RefreshAll rebuilds and pushes every connected collector's worklist once.
// Build failures are transient from the loop's perspective: they are logged
// and retried on the next tick, never fatal.
func (r *Refresher) RefreshAll() {
	for _, collectorID := range r.sink.ConnectedCollectorIDs() {
		wl, err := r.dispatcher.BuildWorklist(collectorID)
		if err != nil {
			log.Printf("⚠️  [DISPATCH] Worklist refresh failed for %s: %v", collectorID, err)
			continue
		}
		r.sink.PushWorklist(collectorID, wl)
	}
}
