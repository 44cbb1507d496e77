package pulse

import "testing"

func TestBatchNotifiesOnce(t *testing.T) {
	a := NewSignal(0)
	b := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = a.Get()
		_ = b.Get()
	})

	Batch(func() {
		a.Set(1)
		b.Set(2)
	})

	if got := listener.getDirtyCount(); got != 1 {
		t.Errorf("batched writes should notify a shared subscriber once, got %d", got)
	}
}

func TestBatchDefersNotification(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = count.Get()
	})

	Batch(func() {
		count.Set(1)
		if listener.getDirtyCount() != 0 {
			t.Error("notification fired inside the batch")
		}
	})

	if listener.getDirtyCount() != 1 {
		t.Error("notification should fire when the batch exits")
	}
}

func TestNestedBatches(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = count.Get()
	})

	Batch(func() {
		Batch(func() {
			count.Set(1)
		})
		// Inner batch exit must not flush while the outer batch is open.
		if listener.getDirtyCount() != 0 {
			t.Error("inner batch leaked a notification")
		}
		count.Set(2)
	})

	if got := listener.getDirtyCount(); got != 1 {
		t.Errorf("expected one notification after the outer batch, got %d", got)
	}
}

func TestBatchPanicStillNotifies(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = count.Get()
	})

	func() {
		defer func() { _ = recover() }()
		Batch(func() {
			count.Set(1)
			panic("batch body failed")
		})
	}()

	if getBatchDepth() != 0 {
		t.Error("batch depth must unwind on panic")
	}
	if listener.getDirtyCount() != 1 {
		t.Error("writes before the panic should still notify")
	}
}

func TestBatchCoalescesEffectRun(t *testing.T) {
	withManualFlush(t)

	a := NewSignal(0)
	b := NewSignal(0)
	runs := 0

	CreateRoot(func(dispose func()) any {
		t.Cleanup(dispose)
		CreateEffect(func() Cleanup {
			_ = a.Get()
			_ = b.Get()
			runs++
			return nil
		})
		return nil
	})

	Batch(func() {
		a.Set(1)
		b.Set(2)
	})
	if err := FlushSync(); err != nil {
		t.Fatalf("FlushSync: %v", err)
	}

	if runs != 2 {
		t.Errorf("batched writes should produce one re-run, got %d total runs", runs)
	}
}
