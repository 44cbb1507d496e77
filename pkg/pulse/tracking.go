package pulse

import (
	"runtime"
	"sync"
)

// trackingContext holds the reactive state for one goroutine: the owner that
// adopts newly created effects, the listener currently recording
// dependencies, and batch bookkeeping. Keeping it per-goroutine lets
// concurrent callers use the runtime without sharing a tracking stack.
type trackingContext struct {
	// currentOwner is the Root that will own newly created effects and roots.
	currentOwner *Root

	// currentListener is what's currently tracking dependencies.
	// nil means reads don't create subscriptions.
	currentListener Listener

	// currentEffect is the effect whose body is executing, for OnCleanup.
	currentEffect *Effect

	// batchDepth tracks nested Batch() calls.
	// When > 0, writes queue notifications instead of firing immediately.
	batchDepth int

	// pendingUpdates accumulates listeners to notify when the outermost
	// batch completes. Deduplicated by ID before notification.
	pendingUpdates []Listener
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine,
// parsed from the runtime stack header ("goroutine <id> ..."). This is an
// implementation detail and never exposed.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ { // Skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating one on first use.
func getTrackingContext() *trackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}

	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// getCurrentListener returns the listener currently recording dependencies,
// or nil when no tracking is active.
func getCurrentListener() Listener {
	return getTrackingContext().currentListener
}

// setCurrentListener sets the current listener for dependency tracking.
// Returns the previous listener so it can be restored.
func setCurrentListener(l Listener) Listener {
	ctx := getTrackingContext()
	old := ctx.currentListener
	ctx.currentListener = l
	return old
}

// getCurrentOwner returns the current owner for the goroutine, or nil.
func getCurrentOwner() *Root {
	return getTrackingContext().currentOwner
}

// setCurrentOwner sets the current owner for effect and root creation.
// Returns the previous owner so it can be restored.
func setCurrentOwner(r *Root) *Root {
	ctx := getTrackingContext()
	old := ctx.currentOwner
	ctx.currentOwner = r
	return old
}

// getCurrentEffect returns the effect whose body is executing, or nil.
func getCurrentEffect() *Effect {
	return getTrackingContext().currentEffect
}

// setCurrentEffect sets the executing effect for OnCleanup registration.
// Returns the previous effect so it can be restored.
func setCurrentEffect(e *Effect) *Effect {
	ctx := getTrackingContext()
	old := ctx.currentEffect
	ctx.currentEffect = e
	return old
}

// getBatchDepth returns the current batch nesting depth.
func getBatchDepth() int {
	return getTrackingContext().batchDepth
}

// incrementBatchDepth increases the batch depth by 1.
func incrementBatchDepth() {
	getTrackingContext().batchDepth++
}

// decrementBatchDepth decreases the batch depth by 1.
// Returns true when the outermost batch completed.
func decrementBatchDepth() bool {
	ctx := getTrackingContext()
	ctx.batchDepth--
	return ctx.batchDepth == 0
}

// queuePendingUpdate records a listener to notify when the batch completes.
func queuePendingUpdate(l Listener) {
	ctx := getTrackingContext()
	ctx.pendingUpdates = append(ctx.pendingUpdates, l)
}

// drainPendingUpdates returns and clears the queued batch notifications.
func drainPendingUpdates() []Listener {
	ctx := getTrackingContext()
	updates := ctx.pendingUpdates
	ctx.pendingUpdates = nil
	return updates
}

// WithOwner runs fn with the given Root as the current owner. Use this when
// spawning goroutines that must create effects belonging to an existing
// scope:
//
//	go func() {
//	    pulse.WithOwner(root, func() {
//	        pulse.CreateEffect(...)
//	    })
//	}()
func WithOwner(root *Root, fn func()) {
	old := setCurrentOwner(root)
	defer setCurrentOwner(old)
	fn()
}

// WithListener runs fn with the given listener recording dependencies.
// This is primarily a building block for tests and host integrations.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}
