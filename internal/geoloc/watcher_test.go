package geoloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(collectorID string) Update {
	return Update{CollectorID: collectorID, Latitude: 17.4, Longitude: 78.4, Timestamp: 1}
}

func TestWatchReceivesPublishedUpdates(t *testing.T) {
	w := NewWatcher()
	h, err := w.Watch("c1")
	require.NoError(t, err)
	defer h.Stop()

	w.Publish(sample("c1"))

	select {
	case u := <-h.Updates():
		assert.Equal(t, "c1", u.CollectorID)
	default:
		t.Fatal("expected an update")
	}
}

func TestPublishOnlyReachesOwnCollector(t *testing.T) {
	w := NewWatcher()
	h1, err := w.Watch("c1")
	require.NoError(t, err)
	defer h1.Stop()
	h2, err := w.Watch("c2")
	require.NoError(t, err)
	defer h2.Stop()

	w.Publish(sample("c1"))

	assert.Len(t, h1.Updates(), 1)
	assert.Len(t, h2.Updates(), 0)
}

func TestStopRemovesWatch(t *testing.T) {
	w := NewWatcher()
	h, err := w.Watch("c1")
	require.NoError(t, err)
	assert.Equal(t, 1, w.ActiveWatchCount())

	h.Stop()
	assert.Equal(t, 0, w.ActiveWatchCount())
	assert.NoError(t, h.Err())

	// Channel closed after Stop
	_, open := <-h.Updates()
	assert.False(t, open)
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewWatcher()
	h, err := w.Watch("c1")
	require.NoError(t, err)

	h.Stop()
	h.Stop() // must not panic or double-close
	assert.Equal(t, 0, w.ActiveWatchCount())
}

func TestTimeoutKeepsWatchAlive(t *testing.T) {
	w := NewWatcher()
	h, err := w.Watch("c1")
	require.NoError(t, err)
	defer h.Stop()

	w.ReportFailure("c1", FailureTimeout, "gps timeout")
	w.ReportFailure("c1", FailureTimeout, "gps timeout")
	assert.Equal(t, 2, w.TimeoutCount("c1"))
	assert.Equal(t, 1, w.ActiveWatchCount())

	// A successful sample resets the retry counter
	w.Publish(sample("c1"))
	assert.Equal(t, 0, w.TimeoutCount("c1"))

	select {
	case <-h.Updates():
	default:
		t.Fatal("watch should still receive updates after timeouts")
	}
}

func TestPermissionDeniedTerminatesWatches(t *testing.T) {
	w := NewWatcher()
	h1, err := w.Watch("c1")
	require.NoError(t, err)
	h2, err := w.Watch("c1")
	require.NoError(t, err)

	w.ReportFailure("c1", FailurePermissionDenied, "user revoked")

	assert.Equal(t, 0, w.ActiveWatchCount())
	for _, h := range []*Handle{h1, h2} {
		_, open := <-h.Updates()
		assert.False(t, open)
		assert.ErrorIs(t, h.Err(), ErrPermissionDenied)
	}

	// New watches are refused for the session
	_, err = w.Watch("c1")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestResetSessionAllowsNewWatches(t *testing.T) {
	w := NewWatcher()
	w.ReportFailure("c1", FailurePermissionDenied, "user revoked")

	_, err := w.Watch("c1")
	require.ErrorIs(t, err, ErrPermissionDenied)

	w.ResetSession("c1")
	h, err := w.Watch("c1")
	require.NoError(t, err)
	defer h.Stop()
	assert.Equal(t, 1, w.ActiveWatchCount())
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	w := NewWatcher()
	h, err := w.Watch("c1")
	require.NoError(t, err)
	defer h.Stop()

	// Overflow the buffered channel; Publish must never block
	for i := 0; i < 100; i++ {
		w.Publish(sample("c1"))
	}
	assert.Equal(t, 1, w.ActiveWatchCount())
}

func TestCloseTearsDownEverything(t *testing.T) {
	w := NewWatcher()
	h1, err := w.Watch("c1")
	require.NoError(t, err)
	h2, err := w.Watch("c2")
	require.NoError(t, err)

	w.Close()

	assert.Equal(t, 0, w.ActiveWatchCount())
	for _, h := range []*Handle{h1, h2} {
		_, open := <-h.Updates()
		assert.False(t, open)
		assert.NoError(t, h.Err())
	}

	// Stop after Close is still safe
	h1.Stop()
}
