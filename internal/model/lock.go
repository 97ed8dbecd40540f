package model

import "time"

// LockInfo is the result of a non-mutating lock inspection.  When Locked is
// false the other fields are zero.
type LockInfo struct {
	Locked    bool
	HolderID  string
	ExpiresIn time.Duration
}

// ActiveLock is one entry in the operational listing of live locks.
type ActiveLock struct {
	EquipmentID string
	HolderID    string
	ExpiresIn   time.Duration
}
