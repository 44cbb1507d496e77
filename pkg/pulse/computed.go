package pulse

import (
	"sync"
	"sync/atomic"
)

// Computed is a cached derived value that automatically tracks its
// dependencies. When any dependency changes, the computed is marked dirty
// and recomputes on the next read.
//
// Computed values are lazy: a dependency change never runs the function by
// itself, it only invalidates the cache and propagates a dirty notification
// to the computed's own subscribers. If several dependencies change before a
// read, the function still runs only once.
//
// Computed values can be subscribed to exactly like signals, which allows
// chains of derived values.
type Computed[T any] struct {
	base cell

	// compute is the function that produces the value.
	compute func() T

	// value is the cached computed value.
	value T

	// valueMu protects value access.
	valueMu sync.RWMutex

	// valid indicates whether the cached value is current.
	// When false, the next Get() recomputes.
	valid atomic.Bool

	// notified dedups dirty propagation between recomputations. It arms on
	// the first MarkDirty and re-arms when a run finishes, including a run
	// that panicked: the subscribers consumed their notification, so the
	// next dependency write must reach them again.
	notified atomic.Bool

	// sources are the cells this computed read during its last run.
	sources   []*cell
	sourcesMu sync.Mutex

	// equal is the optional equality function for the cached value.
	equal func(T, T) bool

	// computing breaks self-referential recomputation.
	computing atomic.Bool
}

// NewComputed creates a new computed value with the given function.
// The function is not run immediately; it runs lazily on the first Get.
func NewComputed[T any](compute func() T) *Computed[T] {
	statComputedsCreated.Add(1)
	return &Computed[T]{
		base:    cell{id: nextID()},
		compute: compute,
	}
}

// Get returns the computed value, recomputing only if a dependency changed
// since the last run. Subscribes the current listener to this computed.
//
// A panic inside the compute function propagates to the caller and the
// computed stays dirty, so the next read retries instead of serving a
// poisoned cache.
func (c *Computed[T]) Get() T {
	c.base.track()

	if !c.valid.Load() {
		c.recompute()
	}

	c.valueMu.RLock()
	value := c.value
	c.valueMu.RUnlock()
	return value
}

// Peek returns the computed value without subscribing.
// It still recomputes when dirty: an untracked read is never stale.
func (c *Computed[T]) Peek() T {
	if !c.valid.Load() {
		c.recompute()
	}
	c.valueMu.RLock()
	value := c.value
	c.valueMu.RUnlock()
	return value
}

// MarkDirty invalidates the cache and propagates to subscribers without
// recomputing. Implements the Listener interface.
func (c *Computed[T]) MarkDirty() {
	c.valid.Store(false)
	// The notified gate keeps repeated dependency notifications idempotent
	// until a recomputation re-arms it, so diamond and cyclic subscription
	// shapes cannot notify unboundedly.
	if c.notified.CompareAndSwap(false, true) {
		c.base.notifySubscribers()
	}
}

// ID returns the unique identifier for this computed.
// Implements the Listener interface.
func (c *Computed[T]) ID() uint64 {
	return c.base.id
}

// Version returns the number of completed recomputations.
func (c *Computed[T]) Version() uint64 {
	return c.base.currentVersion()
}

// addSource records a dependency edge for cleanup on the next run.
// Implements the sourceTracker interface.
func (c *Computed[T]) addSource(source *cell) {
	c.sourcesMu.Lock()
	defer c.sourcesMu.Unlock()

	for _, s := range c.sources {
		if s == source {
			return
		}
	}
	c.sources = append(c.sources, source)
}

// WithEquals configures the computed with a custom equality function.
// When the recomputed value equals the previous one, the computed's version
// is not bumped, so observers can tell a no-op refresh from a real change.
// Call it at construction time, before the computed is shared across
// goroutines; the function is stored without synchronization.
func (c *Computed[T]) WithEquals(fn func(T, T) bool) *Computed[T] {
	c.equal = fn
	return c
}

// recompute runs the function and updates the cached value.
// Dependencies recorded by the previous run are dropped first so edges that
// are no longer read do not keep notifying this computed.
func (c *Computed[T]) recompute() {
	if c.computing.Swap(true) {
		// Re-entrant read during our own computation: serve the stale value
		// rather than recursing forever.
		return
	}
	defer c.computing.Store(false)

	c.sourcesMu.Lock()
	for _, source := range c.sources {
		source.unsubscribe(c)
	}
	c.sources = c.sources[:0]
	c.sourcesMu.Unlock()

	// The deferred restore keeps the tracking stack correct when compute
	// panics; valid stays false so the next read retries.
	old := setCurrentListener(c)
	defer setCurrentListener(old)

	// When compute panics the subscribers have already consumed their
	// notification, so the gate must re-arm or the next dependency write
	// would never reach them.
	defer func() {
		if !c.valid.Load() {
			c.notified.Store(false)
		}
	}()

	newValue := c.compute()

	c.valueMu.Lock()
	changed := c.equal == nil || !c.equal(c.value, newValue)
	c.value = newValue
	c.valueMu.Unlock()

	c.notified.Store(false)
	if changed {
		c.base.bumpVersion()
	}
	c.valid.Store(true)
	statRecomputes.Add(1)
	observeComputedRecomputed(c.base.id)
}

// isComputed marks Computed for the IsComputed predicate.
func (c *Computed[T]) isComputed() {}

// Ensure Computed implements sourceTracker.
var _ sourceTracker = (*Computed[int])(nil)
