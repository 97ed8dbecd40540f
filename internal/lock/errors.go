package lock

import (
	"errors"
	"fmt"
	"time"
)

// ErrLockHeld is matched by errors.Is when an acquire finds the equipment
// already locked.  A conflict is an expected outcome of concurrent booking
// attempts, not an infrastructure failure: callers present it to the user
// and must not retry it automatically.  Store failures (timeouts, broken
// connections) are returned as wrapped errors that do NOT match ErrLockHeld,
// so retry logic can tell the two apart.
var ErrLockHeld = errors.New("equipment is locked by another renter")

// ConflictError reports who currently holds a lock and how long until the
// store expires it.  HolderID may be empty if the lock vanished between the
// failed acquire and the follow-up inspection.
type ConflictError struct {
	EquipmentID string
	HolderID    string
	ExpiresIn   time.Duration
}

func (e *ConflictError) Error() string {
	if e.HolderID == "" {
		return fmt.Sprintf("equipment %s is locked", e.EquipmentID)
	}
	return fmt.Sprintf("equipment %s is locked by %s (expires in %s)",
		e.EquipmentID, e.HolderID, e.ExpiresIn)
}

// Unwrap lets errors.Is(err, ErrLockHeld) match a *ConflictError.
func (e *ConflictError) Unwrap() error { return ErrLockHeld }
