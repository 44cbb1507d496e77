package pulse

import "sync"

// Signal is a reactive value container.
// Reading a Signal's value during a tracked context (a computed's function or
// an effect body) automatically subscribes the current listener to receive
// notifications when the value changes.
//
// Every Set bumps the signal's version and notifies subscribers, even when
// the new value equals the old one. Callers that want compare-before-notify
// semantics opt in with WithEquals.
type Signal[T any] struct {
	base cell

	// value is the current signal value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal, when set, suppresses notification for writes of an equal value.
	equal func(T, T) bool
}

// NewSignal creates a new signal with the given initial value.
// Signals have no owner: they live as long as something references them.
func NewSignal[T any](initial T) *Signal[T] {
	statSignalsCreated.Add(1)
	return &Signal[T]{
		base:  cell{id: nextID()},
		value: initial,
	}
}

// Get returns the current value and subscribes the current listener.
// If called outside any tracked context it behaves exactly like Peek.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track after releasing the value lock to prevent deadlock.
	s.base.track()

	return value
}

// Peek returns the current value without subscribing.
// Useful for reading a value inside an effect without creating a dependency.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the signal's value, bumps its version, and notifies
// subscribers. With a WithEquals function configured, writes of an equal
// value are dropped before the version bump.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	if s.equal != nil && s.equal(s.value, value) {
		s.mu.Unlock()
		return
	}
	s.value = value
	s.mu.Unlock()

	version := s.base.bumpVersion()
	observeSignalWrite(s.base.id, version)
	s.base.notifySubscribers()
}

// Update atomically reads and updates the signal's value.
// The function receives the current value and returns the new value.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	newValue := fn(s.value)
	if s.equal != nil && s.equal(s.value, newValue) {
		s.mu.Unlock()
		return
	}
	s.value = newValue
	s.mu.Unlock()

	version := s.base.bumpVersion()
	observeSignalWrite(s.base.id, version)
	s.base.notifySubscribers()
}

// WithEquals returns the signal configured with an equality function.
// When set, writes of a value equal to the current one do not notify.
// Call it at construction time, before the signal is shared across
// goroutines; the function is stored without synchronization.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

// Version returns the number of writes this signal has seen.
func (s *Signal[T]) Version() uint64 {
	return s.base.currentVersion()
}

// isSignal marks Signal for the IsSignal predicate.
func (s *Signal[T]) isSignal() {}
