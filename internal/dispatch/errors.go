package dispatch

import "errors"

var (
	// ErrUnknownActionKind is returned when the dispatcher receives an
	// action variant it has no handler for.
	ErrUnknownActionKind = errors.New("dispatch: unknown action kind")

	// ErrQueueFull is returned when the queue cannot accept another action.
	ErrQueueFull = errors.New("dispatch: queue full")

	// ErrStopped is returned when an action is submitted after shutdown.
	ErrStopped = errors.New("dispatch: dispatcher stopped")
)
