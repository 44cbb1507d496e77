package pulse

import (
	"sync"
	"testing"
)

// testListener counts MarkDirty notifications.
type testListener struct {
	id         uint64
	dirtyCount int
	mu         sync.Mutex
}

func newTestListener() *testListener {
	return &testListener{id: nextID()}
}

func (l *testListener) MarkDirty() {
	l.mu.Lock()
	l.dirtyCount++
	l.mu.Unlock()
}

func (l *testListener) ID() uint64 {
	return l.id
}

func (l *testListener) getDirtyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirtyCount
}

// withManualFlush disables the background flusher for the duration of a
// test so run counts between a write and FlushSync are deterministic.
func withManualFlush(t *testing.T) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AutoFlush = false
	Configure(cfg)

	// Settle any in-flight background drain and swallow a stale wake token
	// so the flusher cannot race this test's queue.
	_ = FlushSync()
	select {
	case <-defaultScheduler.wake:
	default:
	}

	t.Cleanup(func() { Configure(DefaultConfig()) })
}

func TestGetTrackingContext(t *testing.T) {
	ctx1 := getTrackingContext()
	ctx2 := getTrackingContext()

	if ctx1 != ctx2 {
		t.Error("getTrackingContext should return same context for same goroutine")
	}
}

func TestTrackingContextIsolation(t *testing.T) {
	listener := newTestListener()
	setCurrentListener(listener)
	defer setCurrentListener(nil)

	done := make(chan Listener)
	go func() {
		done <- getCurrentListener()
	}()

	if other := <-done; other != nil {
		t.Error("listener should not leak into other goroutines")
	}

	if getCurrentListener() != listener {
		t.Error("listener should still be set on the original goroutine")
	}
}

func TestSetCurrentListenerRestore(t *testing.T) {
	listener := newTestListener()
	old := setCurrentListener(listener)

	if old != nil {
		t.Error("old listener should be nil")
	}

	if getCurrentListener() != listener {
		t.Error("getCurrentListener should return set listener")
	}

	setCurrentListener(old)
	if getCurrentListener() != nil {
		t.Error("listener should be nil after restore")
	}
}

func TestWithListener(t *testing.T) {
	listener := newTestListener()

	WithListener(listener, func() {
		if getCurrentListener() != listener {
			t.Error("WithListener should install the listener")
		}
	})

	if getCurrentListener() != nil {
		t.Error("WithListener should restore the previous listener")
	}
}

func TestWithOwner(t *testing.T) {
	root := NewRoot(nil)
	defer root.Dispose()

	WithOwner(root, func() {
		if getCurrentOwner() != root {
			t.Error("WithOwner should install the owner")
		}
	})

	if getCurrentOwner() != nil {
		t.Error("WithOwner should restore the previous owner")
	}
}
