package pulse

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ErrCyclicUpdate is the sentinel for runaway write→run→write cycles.
// The scheduler caps the number of re-entrant flush waves; exceeding the cap
// produces a *CyclicUpdateError that wraps this sentinel, instead of an
// unbounded loop or a blown stack.
var ErrCyclicUpdate = errors.New("pulse: cyclic update limit exceeded")

// ErrCleanupContext reports OnCleanup called outside a running effect body.
// Permissive mode ignores the call; strict mode routes this through the
// error handler.
var ErrCleanupContext = errors.New("pulse: OnCleanup called outside a running effect")

// ErrOwnerless reports an effect created with no Root on the tracking stack.
// The effect works, but nothing will ever dispose it except the caller.
var ErrOwnerless = errors.New("pulse: effect created outside any root")

// ErrDisposed reports use of a Root after it was disposed.
var ErrDisposed = errors.New("pulse: use of disposed root")

// CyclicUpdateError is returned by FlushSync (and reported by the background
// flusher) when effects keep re-enqueuing each other past the configured
// flush-depth limit. The queued work that could not settle is dropped.
type CyclicUpdateError struct {
	// Waves is the number of re-entrant flush waves that ran before giving up.
	Waves int

	// Dropped is the number of effects discarded from the queue.
	Dropped int
}

// Error implements the error interface.
func (e *CyclicUpdateError) Error() string {
	return fmt.Sprintf("pulse: cyclic update: %d flush waves without settling, dropped %d queued effects", e.Waves, e.Dropped)
}

// Unwrap lets errors.Is match ErrCyclicUpdate.
func (e *CyclicUpdateError) Unwrap() error {
	return ErrCyclicUpdate
}

// EvaluationError wraps a panic recovered from an effect body during a
// flush. One failing effect must not starve the rest of the queue, so the
// scheduler recovers, reports the wrapped panic through the error handler,
// and keeps draining.
type EvaluationError struct {
	// EffectID identifies the effect whose body panicked.
	EffectID uint64

	// Recovered is the value the body panicked with.
	Recovered any
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("pulse: effect %d panicked: %v", e.EffectID, e.Recovered)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *EvaluationError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// errorHandler is the host-observable error channel. Stored atomically so
// OnError can be called at any time, including from handlers.
var errorHandler atomic.Value // func(error)

// OnError installs the handler that receives runtime errors: recovered
// effect panics, cyclic-update failures, and (in strict mode) misuse
// reports. Passing nil restores the default handler, which logs through
// slog. The handler must not call back into FlushSync.
func OnError(fn func(error)) {
	if fn == nil {
		errorHandler.Store(defaultErrorHandler)
		return
	}
	errorHandler.Store(fn)
}

func defaultErrorHandler(err error) {
	slog.Error("pulse runtime error", "error", err)
}

func init() {
	errorHandler.Store(defaultErrorHandler)
}

// reportError delivers err to the installed error handler.
func reportError(err error) {
	statErrors.Add(1)
	handler := errorHandler.Load().(func(error))
	handler(err)
}

// reportMisuse delivers a programmer-error sentinel to the error handler
// when strict mode is on. Permissive mode (the default) makes misuse a
// silent no-op so production code keeps running.
func reportMisuse(err error) {
	if !config().Strict {
		return
	}
	reportError(err)
}
