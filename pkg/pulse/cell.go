package pulse

import (
	"sync"
	"sync/atomic"
)

// cell provides type-erased, versioned subscriber management.
// It is embedded in Signal[T] and Computed[T] to share subscription logic.
// The version increments on every write, whether or not the stored value
// changed; subscribers and the inspector use it to observe write activity.
type cell struct {
	id uint64

	// version counts writes to this cell.
	version atomic.Uint64

	// subs are the listeners subscribed to this cell.
	subs []Listener

	// subMu protects the subs slice.
	subMu sync.RWMutex
}

// subscribe adds a listener to this cell's subscribers.
// Deduplicates by listener ID to prevent double-subscription.
func (c *cell) subscribe(l Listener) {
	if l == nil {
		return
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	lid := l.ID()
	for _, existing := range c.subs {
		if existing.ID() == lid {
			return
		}
	}

	c.subs = append(c.subs, l)
}

// unsubscribe removes a listener from this cell's subscribers.
func (c *cell) unsubscribe(l Listener) {
	if l == nil {
		return
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	lid := l.ID()
	for i, existing := range c.subs {
		if existing.ID() == lid {
			// Remove by swapping with last element (order doesn't matter)
			c.subs[i] = c.subs[len(c.subs)-1]
			c.subs = c.subs[:len(c.subs)-1]
			return
		}
	}
}

// bumpVersion records a write and returns the new version.
func (c *cell) bumpVersion() uint64 {
	return c.version.Add(1)
}

// currentVersion returns the number of writes this cell has seen.
func (c *cell) currentVersion() uint64 {
	return c.version.Load()
}

// subscriberCount returns the number of current subscribers.
func (c *cell) subscriberCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}

// notifySubscribers notifies all subscribers that this cell changed.
// Uses copy-before-notify so no lock is held during notification.
// Inside a batch the notifications are queued and deduplicated on batch exit.
func (c *cell) notifySubscribers() {
	c.subMu.RLock()
	subs := make([]Listener, len(c.subs))
	copy(subs, c.subs)
	c.subMu.RUnlock()

	if getBatchDepth() > 0 {
		for _, sub := range subs {
			queuePendingUpdate(sub)
		}
		return
	}

	for _, sub := range subs {
		sub.MarkDirty()
	}
}

// track subscribes the current listener, if any, and records the reverse
// edge on the listener so it can unsubscribe on its next run.
func (c *cell) track() {
	listener := getCurrentListener()
	if listener == nil {
		return
	}

	c.subscribe(listener)

	if tracker, ok := listener.(sourceTracker); ok {
		tracker.addSource(c)
	}
}
