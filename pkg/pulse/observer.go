package pulse

import (
	"sync"
	"sync/atomic"
	"time"
)

// Observer receives runtime events: writes, recomputations, effect runs,
// flush waves, and recovered effect panics. Observers are for metrics,
// tracing, and inspection; implementations must be fast and must not call
// back into the runtime.
type Observer interface {
	// SignalWrite fires after a signal write, with the cell's new version.
	SignalWrite(id uint64, version uint64)

	// ComputedRecomputed fires after a computed's function ran.
	ComputedRecomputed(id uint64)

	// EffectRan fires before each effect body execution.
	EffectRan(id uint64)

	// FlushStart fires at the start of a flush wave with the queue size.
	FlushStart(wave int, queued int)

	// FlushEnd fires when a flush wave finishes.
	FlushEnd(wave int, ran int, elapsed time.Duration)

	// EffectPanicked fires when an effect body panic was recovered.
	EffectPanicked(id uint64, err error)
}

var (
	observers   []Observer
	observersMu sync.RWMutex
)

// AddObserver registers an observer for runtime events.
func AddObserver(o Observer) {
	if o == nil {
		return
	}
	observersMu.Lock()
	defer observersMu.Unlock()
	observers = append(observers, o)
}

// RemoveObserver unregisters a previously added observer.
func RemoveObserver(o Observer) {
	observersMu.Lock()
	defer observersMu.Unlock()
	for i, existing := range observers {
		if existing == o {
			observers = append(observers[:i], observers[i+1:]...)
			return
		}
	}
}

// ObserverCount reports how many observers are attached.
func ObserverCount() int {
	observersMu.RLock()
	defer observersMu.RUnlock()
	return len(observers)
}

func observeSignalWrite(id, version uint64) {
	statSignalWrites.Add(1)
	observersMu.RLock()
	defer observersMu.RUnlock()
	for _, o := range observers {
		o.SignalWrite(id, version)
	}
}

func observeComputedRecomputed(id uint64) {
	observersMu.RLock()
	defer observersMu.RUnlock()
	for _, o := range observers {
		o.ComputedRecomputed(id)
	}
}

func observeEffectRan(id uint64) {
	observersMu.RLock()
	defer observersMu.RUnlock()
	for _, o := range observers {
		o.EffectRan(id)
	}
}

func observeFlushStart(wave, queued int) {
	observersMu.RLock()
	defer observersMu.RUnlock()
	for _, o := range observers {
		o.FlushStart(wave, queued)
	}
}

func observeFlushEnd(wave, ran int, elapsed time.Duration) {
	observersMu.RLock()
	defer observersMu.RUnlock()
	for _, o := range observers {
		o.FlushEnd(wave, ran, elapsed)
	}
}

func observeEffectPanicked(id uint64, err error) {
	observersMu.RLock()
	defer observersMu.RUnlock()
	for _, o := range observers {
		o.EffectPanicked(id, err)
	}
}

// Cumulative runtime counters, exposed via Snapshot for the inspector and
// the bench tool.
var (
	statSignalsCreated   atomic.Uint64
	statComputedsCreated atomic.Uint64
	statEffectsCreated   atomic.Uint64
	statRootsCreated     atomic.Uint64
	statSignalWrites     atomic.Uint64
	statRecomputes       atomic.Uint64
	statEffectRuns       atomic.Uint64
	statFlushes          atomic.Uint64
	statPanics           atomic.Uint64
	statErrors           atomic.Uint64
)

// Stats is a point-in-time snapshot of runtime activity.
type Stats struct {
	SignalsCreated   uint64 `json:"signals_created"`
	ComputedsCreated uint64 `json:"computeds_created"`
	EffectsCreated   uint64 `json:"effects_created"`
	RootsCreated     uint64 `json:"roots_created"`
	SignalWrites     uint64 `json:"signal_writes"`
	Recomputes       uint64 `json:"recomputes"`
	EffectRuns       uint64 `json:"effect_runs"`
	Flushes          uint64 `json:"flushes"`
	RecoveredPanics  uint64 `json:"recovered_panics"`
	Errors           uint64 `json:"errors"`
	QueueDepth       int    `json:"queue_depth"`
}

// Snapshot returns the current runtime counters.
func Snapshot() Stats {
	return Stats{
		SignalsCreated:   statSignalsCreated.Load(),
		ComputedsCreated: statComputedsCreated.Load(),
		EffectsCreated:   statEffectsCreated.Load(),
		RootsCreated:     statRootsCreated.Load(),
		SignalWrites:     statSignalWrites.Load(),
		Recomputes:       statRecomputes.Load(),
		EffectRuns:       statEffectRuns.Load(),
		Flushes:          statFlushes.Load(),
		RecoveredPanics:  statPanics.Load(),
		Errors:           statErrors.Load(),
		QueueDepth:       defaultScheduler.queueDepth(),
	}
}
