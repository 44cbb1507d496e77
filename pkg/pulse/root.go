package pulse

import (
	"sync"
	"sync/atomic"
)

// Root is an ownership scope for reactive side effects. Effects and nested
// roots created while a Root is current are registered as its children, and
// disposing the Root disposes them all, deepest first. Roots form a
// hierarchy; signals and computeds are deliberately not owned, they live for
// as long as something references them.
type Root struct {
	id uint64

	// parent is the enclosing Root, nil for a top-level root.
	parent *Root

	// children are nested roots, in creation order.
	children   []*Root
	childrenMu sync.Mutex

	// effects owned by this scope, in creation order.
	effects   []*Effect
	effectsMu sync.Mutex

	// cleanups are functions registered via Root.OnCleanup.
	cleanups   []func()
	cleanupsMu sync.Mutex

	// disposed guards against double and re-entrant disposal. Terminal.
	disposed atomic.Bool
}

// NewRoot creates a Root with the given parent.
// The new Root is registered as a child of the parent when one is given.
func NewRoot(parent *Root) *Root {
	r := &Root{
		id:     nextID(),
		parent: parent,
	}
	statRootsCreated.Add(1)

	if parent != nil {
		parent.addChild(r)
	}

	return r
}

// CreateRoot creates a Root, makes it the current owner for the duration of
// fn, and returns fn's result. The dispose function passed to fn disposes
// the root and everything it owns; it can be called from inside fn, later,
// or never (in which case an enclosing root's disposal cascades here).
//
// Effects created asynchronously after fn returns still attach to the root
// as long as the goroutine carries it via WithOwner and the root has not
// been disposed.
func CreateRoot[R any](fn func(dispose func()) R) R {
	root := NewRoot(getCurrentOwner())

	old := setCurrentOwner(root)
	defer setCurrentOwner(old)

	return fn(root.Dispose)
}

// ID returns the unique identifier for this Root.
func (r *Root) ID() uint64 {
	return r.id
}

// Parent returns the parent Root, or nil for a top-level root.
func (r *Root) Parent() *Root {
	return r.parent
}

// IsDisposed returns true once this Root has been disposed.
func (r *Root) IsDisposed() bool {
	return r.disposed.Load()
}

// addChild registers a nested root.
func (r *Root) addChild(child *Root) {
	if r.disposed.Load() {
		reportMisuse(ErrDisposed)
		return
	}

	r.childrenMu.Lock()
	defer r.childrenMu.Unlock()
	r.children = append(r.children, child)
}

// removeChild detaches a nested root, typically when it is disposed on its
// own before this root is.
func (r *Root) removeChild(child *Root) {
	r.childrenMu.Lock()
	defer r.childrenMu.Unlock()

	for i, c := range r.children {
		if c == child {
			r.children = append(r.children[:i], r.children[i+1:]...)
			return
		}
	}
}

// registerEffect adds an effect to this scope.
// The effect is disposed when the scope is disposed. Registering on an
// already-disposed root is a misuse: the effect is disposed immediately so
// it cannot run again, and strict mode reports it.
func (r *Root) registerEffect(e *Effect) {
	if r.disposed.Load() {
		reportMisuse(ErrDisposed)
		e.Dispose()
		return
	}

	r.effectsMu.Lock()
	defer r.effectsMu.Unlock()
	r.effects = append(r.effects, e)
}

// OnCleanup registers a cleanup function to run when this Root is disposed.
// On an already-disposed root the function runs immediately.
func (r *Root) OnCleanup(fn func()) {
	if r.disposed.Load() {
		fn()
		return
	}

	r.cleanupsMu.Lock()
	defer r.cleanupsMu.Unlock()
	r.cleanups = append(r.cleanups, fn)
}

// Dispose disposes this Root and everything it owns: nested roots first
// (deepest subtrees, most recent first), then effects, then the root's own
// cleanups in reverse registration order. Disposal is idempotent and safe to
// trigger re-entrantly from a cleanup.
func (r *Root) Dispose() {
	if r.disposed.Swap(true) {
		return
	}

	if r.parent != nil {
		r.parent.removeChild(r)
	}

	r.childrenMu.Lock()
	children := make([]*Root, len(r.children))
	copy(children, r.children)
	r.children = nil
	r.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	r.effectsMu.Lock()
	effects := r.effects
	r.effects = nil
	r.effectsMu.Unlock()

	for i := len(effects) - 1; i >= 0; i-- {
		effects[i].Dispose()
	}

	r.cleanupsMu.Lock()
	cleanups := r.cleanups
	r.cleanups = nil
	r.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
