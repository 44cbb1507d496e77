package pulse

// Batch groups multiple signal writes into a single notification phase.
// All writes inside fn are collected, deduplicated by subscriber, and each
// affected listener is notified once when the outermost batch completes.
//
// Batches nest; notifications only fire when the outermost batch exits.
//
// Example:
//
//	pulse.Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	})
//	// A subscriber of both signals is notified once, not twice.
func Batch(fn func()) {
	incrementBatchDepth()

	defer func() {
		if decrementBatchDepth() {
			processPendingUpdates()
		}
	}()

	fn()
}

// processPendingUpdates deduplicates and notifies all queued listeners.
func processPendingUpdates() {
	updates := drainPendingUpdates()
	if len(updates) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(updates))
	unique := make([]Listener, 0, len(updates))

	for _, listener := range updates {
		id := listener.ID()
		if !seen[id] {
			seen[id] = true
			unique = append(unique, listener)
		}
	}

	for _, listener := range unique {
		listener.MarkDirty()
	}
}

// Untracked runs fn without tracking signal reads as dependencies.
//
// For a single read, Peek() is more direct; Untracked covers code paths that
// read several reactive values or call helpers that read internally.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}

// UntrackedGet reads a signal's value without creating a dependency.
// Convenience equivalent of s.Peek().
func UntrackedGet[T any](s *Signal[T]) T {
	return s.Peek()
}
