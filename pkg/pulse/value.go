package pulse

// signalMarker and computedMarker are implemented by Signal[T] and
// Computed[T] across all instantiations, so interop code can classify a
// value without knowing T.
type signalMarker interface{ isSignal() }
type computedMarker interface{ isComputed() }

// IsSignal reports whether x is a *Signal of any element type.
func IsSignal(x any) bool {
	_, ok := x.(signalMarker)
	return ok
}

// IsComputed reports whether x is a *Computed of any element type.
func IsComputed(x any) bool {
	_, ok := x.(computedMarker)
	return ok
}

// valueKind tags the source backing a Value.
type valueKind uint8

const (
	valueStatic valueKind = iota
	valueSignal
	valueComputed
)

// Value is a reactive-or-plain source resolved once at construction.
// APIs that accept either a constant or a live reactive input take a Value
// and call Get, instead of re-classifying an untyped argument on every read.
type Value[T any] struct {
	kind     valueKind
	static   T
	signal   *Signal[T]
	computed *Computed[T]
}

// StaticValue wraps a plain constant.
func StaticValue[T any](v T) Value[T] {
	return Value[T]{kind: valueStatic, static: v}
}

// FromSignal wraps a signal as a Value.
func FromSignal[T any](s *Signal[T]) Value[T] {
	return Value[T]{kind: valueSignal, signal: s}
}

// FromComputed wraps a computed as a Value.
func FromComputed[T any](c *Computed[T]) Value[T] {
	return Value[T]{kind: valueComputed, computed: c}
}

// Get returns the current value, tracking the read when the source is
// reactive. Static values never track.
func (v Value[T]) Get() T {
	switch v.kind {
	case valueSignal:
		return v.signal.Get()
	case valueComputed:
		return v.computed.Get()
	default:
		return v.static
	}
}

// Peek returns the current value without tracking.
func (v Value[T]) Peek() T {
	switch v.kind {
	case valueSignal:
		return v.signal.Peek()
	case valueComputed:
		return v.computed.Peek()
	default:
		return v.static
	}
}

// IsReactive reports whether the Value is backed by a signal or computed.
func (v Value[T]) IsReactive() bool {
	return v.kind != valueStatic
}
