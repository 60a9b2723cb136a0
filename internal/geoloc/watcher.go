// Package geoloc manages live location-watch subscriptions. A watch is a
// long-lived, cancellable handle on one collector's position stream: starting
// one returns a handle, and every exit path must go through Stop so that a
// torn-down screen never leaves a subscription behind.
package geoloc

import (
	"errors"
	"log"
	"sync"
)

// Update is one position sample flowing through the registry
type Update struct {
	CollectorID string
	Latitude    float64
	Longitude   float64
	Heading     *float64
	Speed       *float64
	Accuracy    *float64
	Timestamp   int64
}

// FailureKind classifies a location acquisition failure reported by a device
type FailureKind int

const (
	FailureTimeout          FailureKind = iota // retryable, the watch stays up
	FailurePermissionDenied                    // terminal for the session
)

// ErrPermissionDenied is the terminal reason set on handles whose collector
// revoked location permission
var ErrPermissionDenied = errors.New("location permission denied")

// Handle is a single live subscription. Updates delivers position samples
// until Stop is called or the watch terminates; afterwards the channel is
// closed and Err reports the terminal reason, if any.
type Handle struct {
	id          int
	collectorID string
	updates     chan Update

	mu     sync.Mutex
	closed bool
	err    error

	watcher *Watcher
}

// Updates is the subscription's sample stream
func (h *Handle) Updates() <-chan Update {
	return h.updates
}

// Err returns the terminal failure that ended the watch, or nil after a
// plain Stop
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stop cancels the subscription. Idempotent; always safe in a defer.
func (h *Handle) Stop() {
	h.watcher.remove(h, nil)
}

func (h *Handle) terminate(reason error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.err = reason
	close(h.updates)
	h.mu.Unlock()
}

// Watcher is the registry of live watches, keyed by collector
type Watcher struct {
	mu      sync.Mutex
	nextID  int
	handles map[string]map[int]*Handle // collectorID -> handle id -> handle
	retries map[string]int             // consecutive timeout count per collector
	denied  map[string]bool            // permission revoked this session
}

func NewWatcher() *Watcher {
	return &Watcher{
		handles: make(map[string]map[int]*Handle),
		retries: make(map[string]int),
		denied:  make(map[string]bool),
	}
}

// Watch opens a subscription on a collector's position stream. Returns
// ErrPermissionDenied immediately when the collector's device already
// reported a permission failure this session.
func (w *Watcher) Watch(collectorID string) (*Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.denied[collectorID] {
		return nil, ErrPermissionDenied
	}

	w.nextID++
	h := &Handle{
		id:          w.nextID,
		collectorID: collectorID,
		updates:     make(chan Update, 16),
		watcher:     w,
	}

	if w.handles[collectorID] == nil {
		w.handles[collectorID] = make(map[int]*Handle)
	}
	w.handles[collectorID][h.id] = h

	return h, nil
}

// Publish fans a sample out to the collector's live handles. A successful
// sample clears the timeout retry counter. Slow subscribers drop samples
// rather than block the feed.
func (w *Watcher) Publish(u Update) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.retries[u.CollectorID] = 0

	for _, h := range w.handles[u.CollectorID] {
		select {
		case h.updates <- u:
		default:
		}
	}
}

// ReportFailure ingests a location failure from the device. Timeouts only
// bump a retry counter — the watch keeps running and the next sample clears
// it. Permission denial is terminal: every handle for the collector closes
// with ErrPermissionDenied and new watches are refused for the session.
func (w *Watcher) ReportFailure(collectorID string, kind FailureKind, detail string) {
	w.mu.Lock()

	switch kind {
	case FailureTimeout:
		w.retries[collectorID]++
		count := w.retries[collectorID]
		w.mu.Unlock()
		log.Printf("⚠️  [GEOLOC] Location timeout for %s (attempt %d): %s", collectorID, count, detail)
		return

	case FailurePermissionDenied:
		w.denied[collectorID] = true
		handles := w.handles[collectorID]
		delete(w.handles, collectorID)
		w.mu.Unlock()

		for _, h := range handles {
			h.terminate(ErrPermissionDenied)
		}
		log.Printf("🔴 [GEOLOC] Location permission denied for %s, tracking disabled: %s", collectorID, detail)
	}
}

// ResetSession clears the permission-denied state, e.g. after the collector
// re-grants permission and reconnects
func (w *Watcher) ResetSession(collectorID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.denied, collectorID)
	w.retries[collectorID] = 0
}

// TimeoutCount returns the consecutive timeout count for a collector
func (w *Watcher) TimeoutCount(collectorID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retries[collectorID]
}

// ActiveWatchCount reports the number of live handles across all collectors
func (w *Watcher) ActiveWatchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, hs := range w.handles {
		n += len(hs)
	}
	return n
}

// Close tears down every live handle
func (w *Watcher) Close() {
	w.mu.Lock()
	all := w.handles
	w.handles = make(map[string]map[int]*Handle)
	w.mu.Unlock()

	for _, hs := range all {
		for _, h := range hs {
			h.terminate(nil)
		}
	}
}

func (w *Watcher) remove(h *Handle, reason error) {
	w.mu.Lock()
	if hs, ok := w.handles[h.collectorID]; ok {
		delete(hs, h.id)
		if len(hs) == 0 {
			delete(w.handles, h.collectorID)
		}
	}
	w.mu.Unlock()

	h.terminate(reason)
}
