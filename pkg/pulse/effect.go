package pulse

import (
	"sync"
	"sync/atomic"
)

// Effect represents a reactive side effect that re-runs when its
// dependencies change. The body runs once, synchronously, when the effect is
// created; subsequent dependency changes enqueue the effect on the flush
// queue instead of running it inline.
//
// Cleanups registered with OnCleanup during the body (and the optional
// Cleanup returned by the body) run in reverse registration order before
// each re-run and on disposal.
type Effect struct {
	id uint64

	// fn is the effect body.
	fn func() Cleanup

	// cleanups registered during the last run, in registration order.
	cleanups   []func()
	cleanupsMu sync.Mutex

	// sources are the cells this effect read during its last run.
	sources   []*cell
	sourcesMu sync.Mutex

	// owner is the Root that owns this effect, nil for ownerless effects.
	owner *Root

	// pending indicates the effect is sitting in the flush queue.
	pending atomic.Bool

	// disposed indicates the effect has been disposed. Terminal.
	disposed atomic.Bool
}

// MarkDirty marks the effect as needing to re-run and hands it to the
// scheduler. Implements the Listener interface.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}

	// CAS ensures one queue entry no matter how many dependencies fired.
	if e.pending.CompareAndSwap(false, true) {
		defaultScheduler.enqueue(e)
	}
}

// ID returns the unique identifier for this effect.
// Implements the Listener interface.
func (e *Effect) ID() uint64 {
	return e.id
}

// IsDisposed returns true once the effect has been disposed.
func (e *Effect) IsDisposed() bool {
	return e.disposed.Load()
}

// run executes the effect body.
// Called on creation and from the scheduler when dependencies changed.
func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}

	e.pending.Store(false)
	e.runCleanups()

	// Drop last run's dependency edges; the body re-records what it reads.
	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = e.sources[:0]
	e.sourcesMu.Unlock()

	oldListener := setCurrentListener(e)
	oldEffect := setCurrentEffect(e)
	defer func() {
		setCurrentEffect(oldEffect)
		setCurrentListener(oldListener)
	}()

	statEffectRuns.Add(1)
	observeEffectRan(e.id)

	if cleanup := e.fn(); cleanup != nil {
		e.registerCleanup(cleanup)
	}
}

// registerCleanup appends a cleanup for the current run.
func (e *Effect) registerCleanup(fn func()) {
	e.cleanupsMu.Lock()
	e.cleanups = append(e.cleanups, fn)
	e.cleanupsMu.Unlock()
}

// runCleanups runs and clears the cleanup list in reverse registration
// order. The list is detached before iteration so a cleanup that registers
// another cleanup cannot corrupt the walk.
func (e *Effect) runCleanups() {
	e.cleanupsMu.Lock()
	cleanups := e.cleanups
	e.cleanups = nil
	e.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// addSource records a dependency edge for cleanup on the next run.
// Implements the sourceTracker interface.
func (e *Effect) addSource(source *cell) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

// Dispose runs pending cleanups, unsubscribes from all dependencies, and
// marks the effect disposed. A disposed effect never runs again, even if it
// was already enqueued: the scheduler skips it at flush time. Disposing
// twice is a no-op.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}

	e.runCleanups()

	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

// CreateEffect creates an effect owned by the current root and runs its body
// once, synchronously. The body re-runs through the flush queue whenever any
// signal or computed it read changes. A non-nil returned Cleanup behaves as
// if it were the last OnCleanup registration of that run.
//
// Creating an effect with no root on the tracking stack is legal but leaves
// the caller responsible for calling Dispose; in strict mode the runtime
// reports ErrOwnerless through the error handler.
func CreateEffect(fn func() Cleanup) *Effect {
	owner := getCurrentOwner()

	e := &Effect{
		id:    nextID(),
		fn:    fn,
		owner: owner,
	}
	statEffectsCreated.Add(1)

	if owner != nil {
		owner.registerEffect(e)
	} else {
		reportMisuse(ErrOwnerless)
	}

	// Initial run is inline; a panic here propagates to the creator.
	e.run()

	return e
}

// OnCleanup registers fn to run immediately before the current effect's next
// re-run, or on its disposal. It is only meaningful while an effect body is
// executing; called anywhere else it is a no-op (reported through the error
// handler as ErrCleanupContext when strict mode is on).
func OnCleanup(fn func()) {
	if e := getCurrentEffect(); e != nil {
		e.registerCleanup(fn)
		return
	}
	reportMisuse(ErrCleanupContext)
}
