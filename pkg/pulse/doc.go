// Package pulse provides a fine-grained reactive runtime: signals, computed
// values, effects, and ownership roots connected by a dependency graph that
// is tracked automatically at run time. Reading a signal inside an effect or
// a computed subscribes the reader; writing the signal schedules exactly the
// subscribers that depend on it. There is no diffing pass and no render
// layer: this package is the engine, consumers decide what the effects do.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := pulse.NewSignal(0)
//	value := count.Get()  // Read (subscribes current listener)
//	count.Set(5)          // Write (bumps version, notifies subscribers)
//	count.Update(func(n int) int { return n + 1 })
//
// Computed[T] is a cached derived computation. It is lazy: the function runs
// on the first Get and again only after a dependency changed:
//
//	doubled := pulse.NewComputed(func() int { return count.Get() * 2 })
//	value := doubled.Get()
//
// Effect runs side effects when dependencies change. Effects are owned by the
// enclosing Root and scheduled through the package's flush queue:
//
//	pulse.CreateRoot(func(dispose func()) any {
//	    pulse.CreateEffect(func() pulse.Cleanup {
//	        fmt.Println("count is", count.Get())
//	        return func() { /* runs before the next re-run */ }
//	    })
//	    return nil
//	})
//
// # Scheduling
//
// Writes mark dependent effects dirty and enqueue them. The queue drains
// either when FlushSync is called or shortly after on the runtime's flush
// goroutine; multiple writes to the same effect coalesce into a single run.
// Computed values are never pushed: they only recompute when read.
//
// # Batching
//
// Multiple signal updates can be batched to notify each subscriber once:
//
//	pulse.Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})
//
// # Thread Safety
//
// All primitives are safe for concurrent use. The tracking context is
// per-goroutine, so goroutines that need to create owned effects must
// propagate ownership explicitly via WithOwner.
package pulse
