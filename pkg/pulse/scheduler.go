package pulse

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// scheduler owns the pending-effect queue and the flush loop. There is one
// scheduler per process; the dependency graph it serializes is protected by
// the primitives' own locks, the scheduler only orders and coalesces runs.
type scheduler struct {
	// queue holds effects in enqueue order (FIFO). The pending flag on each
	// effect guarantees at most one queue entry per effect.
	queue   []*Effect
	queueMu sync.Mutex

	// flushMu serializes drains across goroutines.
	flushMu sync.Mutex

	// flushOwner is the goroutine ID currently draining, 0 when idle.
	// A re-entrant FlushSync from an effect body returns immediately: the
	// write it coalesced is picked up by the drain already in progress.
	flushOwner atomic.Uint64

	// wake signals the background flusher. Buffered so writers never block.
	wake chan struct{}

	// startFlusher lazily launches the background flusher goroutine.
	startFlusher sync.Once
}

var defaultScheduler = &scheduler{
	wake: make(chan struct{}, 1),
}

// enqueue appends an effect to the pending queue and, when automatic
// flushing is enabled, nudges the background flusher. Callers hold the
// effect's pending flag, so duplicates cannot occur.
func (s *scheduler) enqueue(e *Effect) {
	s.queueMu.Lock()
	s.queue = append(s.queue, e)
	s.queueMu.Unlock()

	if config().AutoFlush {
		s.startFlusher.Do(func() {
			go s.flushLoop()
		})
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// flushLoop is the background flusher: it drains whenever a write wakes it.
// Errors are already reported through the error handler inside flush.
func (s *scheduler) flushLoop() {
	for range s.wake {
		_ = s.flush()
	}
}

// takeQueue detaches the current queue contents.
func (s *scheduler) takeQueue() []*Effect {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	queue := s.queue
	s.queue = nil
	return queue
}

// queueDepth returns the number of queued effects.
func (s *scheduler) queueDepth() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}

// flush drains the pending queue. Effects run once each, in enqueue order.
// Writes made by a running effect join the same drain as an additional
// wave; the wave count is capped by MaxFlushDepth, beyond which the
// remaining queue is dropped and a *CyclicUpdateError is returned and
// reported.
func (s *scheduler) flush() error {
	gid := getGoroutineID()
	if s.flushOwner.Load() == gid {
		// FlushSync from inside an effect body: the surrounding drain is
		// still running and will pick up anything queued since.
		return nil
	}

	s.flushMu.Lock()
	s.flushOwner.Store(gid)
	defer func() {
		s.flushOwner.Store(0)
		s.flushMu.Unlock()
	}()

	cfg := config()
	budget := cfg.MaxEffectRunsPerFlushWave

	for wave := 0; ; wave++ {
		batch := s.takeQueue()
		if len(batch) == 0 {
			return nil
		}

		if wave >= cfg.MaxFlushDepth {
			err := s.abortCycle(wave, batch)
			reportError(err)
			return err
		}

		start := time.Now()
		observeFlushStart(wave, len(batch))

		ran := 0
		for i, e := range batch {
			// Lazy-skip: disposal after enqueue wins over the queue entry.
			if e.disposed.Load() || !e.pending.Load() {
				continue
			}

			if budget > 0 && ran >= budget {
				// Budget spent: push the remainder into the next wave.
				s.requeue(batch[i:])
				break
			}

			s.runEffect(e)
			ran++
		}

		statFlushes.Add(1)
		observeFlushEnd(wave, ran, time.Since(start))
		if Debug.LogFlushes {
			slog.Debug("pulse flush wave", "wave", wave, "ran", ran, "queued", len(batch))
		}
	}
}

// requeue returns unprocessed effects to the front-of-queue position for
// the next wave, preserving their relative order.
func (s *scheduler) requeue(effects []*Effect) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	pending := make([]*Effect, 0, len(effects)+len(s.queue))
	pending = append(pending, effects...)
	pending = append(pending, s.queue...)
	s.queue = pending
}

// abortCycle drops everything still queued and clears the pending flags so
// future writes can schedule those effects again.
func (s *scheduler) abortCycle(waves int, batch []*Effect) *CyclicUpdateError {
	dropped := 0
	for _, e := range batch {
		if e.pending.Swap(false) {
			dropped++
		}
	}
	for _, e := range s.takeQueue() {
		if e.pending.Swap(false) {
			dropped++
		}
	}
	return &CyclicUpdateError{Waves: waves, Dropped: dropped}
}

// runEffect runs one effect, converting a panic in its body into an
// EvaluationError on the error channel so the rest of the queue still runs.
func (s *scheduler) runEffect(e *Effect) {
	defer func() {
		if r := recover(); r != nil {
			statPanics.Add(1)
			err := &EvaluationError{EffectID: e.id, Recovered: r}
			observeEffectPanicked(e.id, err)
			reportError(err)
		}
	}()

	if Debug.LogEffectRuns {
		slog.Debug("pulse effect run", "effect", e.id)
	}
	e.run()
}

// FlushSync drains the pending-effect queue immediately on the calling
// goroutine. Each queued, non-disposed effect runs exactly once per wave in
// its enqueue order; effects re-enqueued by the drain run in follow-up
// waves. Returns nil on a settled queue, or a *CyclicUpdateError when the
// graph would not settle within the configured flush depth.
//
// Called while another goroutine is draining, FlushSync waits for that drain
// and then drains whatever is left. Called from inside an effect body it is
// a no-op, because the surrounding drain is still collecting work.
func FlushSync() error {
	return defaultScheduler.flush()
}

// PendingEffects returns the current depth of the flush queue.
func PendingEffects() int {
	return defaultScheduler.queueDepth()
}
