package pulse

// Listener is anything that can be notified when a dependency changes.
// This interface is implemented by computed values and effects.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies has changed.
	// For computed values, this invalidates the cached value.
	// For effects, this schedules the effect to re-run.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication during batch processing and flushes.
	ID() uint64
}

// Cleanup is a function returned by an effect body to release resources.
// It is called before the effect re-runs and when the effect is disposed.
type Cleanup func()

// sourceTracker is implemented by listeners that record which cells they
// read, so stale subscriptions can be dropped on the next run.
type sourceTracker interface {
	Listener
	addSource(source *cell)
}
