package sync

import "errors"

var (
	// ErrOffline is returned by ForceSync when the monitor reports no
	// connectivity. Forced syncs fail fast instead of queueing.
	ErrOffline = errors.New("sync: cannot force sync while offline")

	// ErrClosed is returned after Close released the engine's resources.
	ErrClosed = errors.New("sync: engine is closed")

	// ErrUnknownEntity is returned when no handler is registered for an
	// action's entity kind. It counts against the action's retry budget.
	ErrUnknownEntity = errors.New("sync: no handler registered for entity")
)
