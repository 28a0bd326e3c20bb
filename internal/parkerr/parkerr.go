// Package parkerr holds the error taxonomy of the parking core. Callers
// branch on these sentinels with errors.Is.
package parkerr

import "errors"

var (
	// ErrDuplicateActiveSession rejects an entry while a session is still active.
	ErrDuplicateActiveSession = errors.New("active session already exists for vehicle")

	// ErrNoActiveSession rejects an exit with nothing to close.
	ErrNoActiveSession = errors.New("no active session for vehicle")

	// ErrNoFreeSlot signals a degraded allocation: the session stays recorded
	// without a physical slot.
	ErrNoFreeSlot = errors.New("no free parking slot available")

	// ErrContentionTimeout means the exclusivity guard could not be acquired
	// within the bounded wait. Retryable by the caller.
	ErrContentionTimeout = errors.New("timed out waiting for vehicle lock")
)
