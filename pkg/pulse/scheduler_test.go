package pulse

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFlushSyncRunsInEnqueueOrder(t *testing.T) {
	withManualFlush(t)

	a := NewSignal(0)
	b := NewSignal(0)
	var order []string

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			_ = a.Get()
			order = append(order, "first")
			return nil
		})
		CreateEffect(func() Cleanup {
			_ = b.Get()
			order = append(order, "second")
			return nil
		})
		return nil
	})

	order = nil
	b.Set(1) // enqueues second before first
	a.Set(1)
	if err := FlushSync(); err != nil {
		t.Fatalf("FlushSync: %v", err)
	}

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("effects must run in enqueue order, got %v", order)
	}
}

func TestFlushSyncDeduplicatesEnqueues(t *testing.T) {
	withManualFlush(t)

	count := NewSignal(0)
	runs := 0

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			_ = count.Get()
			runs++
			return nil
		})
		return nil
	})

	count.Set(1)
	count.Set(2)
	count.Set(3)

	if depth := PendingEffects(); depth != 1 {
		t.Errorf("three writes should leave one queue entry, got %d", depth)
	}

	if err := FlushSync(); err != nil {
		t.Fatalf("FlushSync: %v", err)
	}
	if runs != 2 {
		t.Errorf("expected a single coalesced re-run, got %d total runs", runs)
	}
}

func TestFlushSyncEmptyQueue(t *testing.T) {
	withManualFlush(t)
	if err := FlushSync(); err != nil {
		t.Errorf("flushing an empty queue should be a no-op, got %v", err)
	}
}

func TestWriteDuringFlushJoinsSameDrain(t *testing.T) {
	withManualFlush(t)

	first := NewSignal(0)
	second := NewSignal(0)
	secondRuns := 0

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			if first.Get() == 1 {
				second.Set(1)
			}
			return nil
		})
		CreateEffect(func() Cleanup {
			_ = second.Get()
			secondRuns++
			return nil
		})
		return nil
	})

	first.Set(1)
	if err := FlushSync(); err != nil {
		t.Fatalf("FlushSync: %v", err)
	}

	// The cascaded write lands in a follow-up wave of the same drain.
	if secondRuns != 2 {
		t.Errorf("cascaded write should re-run the dependent effect within the drain, got %d runs", secondRuns)
	}
}

func TestFlushSyncInsideEffectIsNoOp(t *testing.T) {
	withManualFlush(t)

	count := NewSignal(0)
	runs := 0

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			_ = count.Get()
			runs++
			if err := FlushSync(); err != nil {
				t.Errorf("re-entrant FlushSync should be a no-op, got %v", err)
			}
			return nil
		})
		return nil
	})

	count.Set(1)
	if err := FlushSync(); err != nil {
		t.Fatalf("FlushSync: %v", err)
	}
	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
}

func TestCyclicUpdateGuard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoFlush = false
	cfg.MaxFlushDepth = 10
	Configure(cfg)
	t.Cleanup(func() { Configure(DefaultConfig()) })

	var handlerErr error
	var handlerMu sync.Mutex
	OnError(func(err error) {
		handlerMu.Lock()
		handlerErr = err
		handlerMu.Unlock()
	})
	t.Cleanup(func() { OnError(nil) })

	count := NewSignal(0)

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		// Unconditional self-write: can never settle.
		CreateEffect(func() Cleanup {
			count.Set(count.Get() + 1)
			return nil
		})
		return nil
	})

	err := FlushSync()
	if !errors.Is(err, ErrCyclicUpdate) {
		t.Fatalf("expected cyclic update error, got %v", err)
	}

	var cyclic *CyclicUpdateError
	if !errors.As(err, &cyclic) {
		t.Fatalf("expected *CyclicUpdateError, got %T", err)
	}
	if cyclic.Waves != 10 {
		t.Errorf("expected 10 waves, got %d", cyclic.Waves)
	}

	handlerMu.Lock()
	reported := handlerErr
	handlerMu.Unlock()
	if !errors.Is(reported, ErrCyclicUpdate) {
		t.Errorf("error handler should receive the cyclic error, got %v", reported)
	}

	// The queue is dropped: a later flush succeeds.
	if err := FlushSync(); err != nil {
		t.Errorf("queue should be clear after a cyclic abort, got %v", err)
	}
}

func TestEffectPanicDoesNotStopFlush(t *testing.T) {
	withManualFlush(t)

	var handlerErr error
	var handlerMu sync.Mutex
	OnError(func(err error) {
		handlerMu.Lock()
		handlerErr = err
		handlerMu.Unlock()
	})
	t.Cleanup(func() { OnError(nil) })

	count := NewSignal(0)
	healthyRuns := 0

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			if count.Get() > 0 {
				panic("effect exploded")
			}
			return nil
		})
		CreateEffect(func() Cleanup {
			_ = count.Get()
			healthyRuns++
			return nil
		})
		return nil
	})

	count.Set(1)
	if err := FlushSync(); err != nil {
		t.Fatalf("a panicking effect must not fail the flush: %v", err)
	}

	if healthyRuns != 2 {
		t.Errorf("the healthy effect should still run, got %d runs", healthyRuns)
	}

	handlerMu.Lock()
	reported := handlerErr
	handlerMu.Unlock()

	var eval *EvaluationError
	if !errors.As(reported, &eval) {
		t.Fatalf("expected *EvaluationError, got %v", reported)
	}
	if eval.Recovered != "effect exploded" {
		t.Errorf("unexpected recovered value %v", eval.Recovered)
	}
}

func TestEffectRecoversAfterComputedPanic(t *testing.T) {
	withManualFlush(t)

	var handlerErr error
	var handlerMu sync.Mutex
	OnError(func(err error) {
		handlerMu.Lock()
		handlerErr = err
		handlerMu.Unlock()
	})
	t.Cleanup(func() { OnError(nil) })

	count := NewSignal(0)
	doubled := NewComputed(func() int {
		if count.Get() == 1 {
			panic("compute failed")
		}
		return count.Get() * 2
	})

	runs := 0
	seen := -1
	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			runs++
			seen = doubled.Get()
			return nil
		})
		return nil
	})

	count.Set(1)
	if err := FlushSync(); err != nil {
		t.Fatalf("a panicking compute must not fail the flush: %v", err)
	}

	handlerMu.Lock()
	reported := handlerErr
	handlerMu.Unlock()
	var eval *EvaluationError
	if !errors.As(reported, &eval) {
		t.Fatalf("expected *EvaluationError, got %v", reported)
	}

	// The failed run consumed its notification; the next write must still
	// reach the effect through the dirty computed.
	count.Set(2)
	if err := FlushSync(); err != nil {
		t.Fatalf("FlushSync after recovery: %v", err)
	}

	if runs != 3 {
		t.Errorf("expected the effect to re-run after the failing write, got %d runs", runs)
	}
	if seen != 4 {
		t.Errorf("expected the effect to observe 4, got %d", seen)
	}
}

func TestEffectRunBudgetDefersToNextWave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoFlush = false
	cfg.MaxEffectRunsPerFlushWave = 1
	Configure(cfg)
	t.Cleanup(func() { Configure(DefaultConfig()) })

	count := NewSignal(0)
	runsA := 0
	runsB := 0

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			_ = count.Get()
			runsA++
			return nil
		})
		CreateEffect(func() Cleanup {
			_ = count.Get()
			runsB++
			return nil
		})
		return nil
	})

	count.Set(1)
	if err := FlushSync(); err != nil {
		t.Fatalf("FlushSync: %v", err)
	}

	// Both effects run; the budget only splits them across waves.
	if runsA != 2 || runsB != 2 {
		t.Errorf("budgeted flush should still run everything, got a=%d b=%d", runsA, runsB)
	}
}

func TestAutoFlushEventuallyRuns(t *testing.T) {
	// Default config: the background flusher drains without FlushSync.
	count := NewSignal(0)
	runs := make(chan struct{}, 8)

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			_ = count.Get()
			runs <- struct{}{}
			return nil
		})
		return nil
	})

	<-runs // initial run

	count.Set(1)

	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("background flusher did not run the effect")
	}
}

func TestConcurrentFlushSync(t *testing.T) {
	withManualFlush(t)

	count := NewSignal(0)
	var runs int
	var runsMu sync.Mutex

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			_ = count.Get()
			runsMu.Lock()
			runs++
			runsMu.Unlock()
			return nil
		})
		return nil
	})

	count.Set(1)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = FlushSync()
		}()
	}
	wg.Wait()

	runsMu.Lock()
	defer runsMu.Unlock()
	if runs != 2 {
		t.Errorf("concurrent flushes must not duplicate runs, got %d", runs)
	}
}
