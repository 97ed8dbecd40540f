// Package repository provides data access to the equipment and bookings
// tables.  This file defines the sentinel errors shared by the
// repositories so that higher layers can distinguish failure scenarios
// with errors.Is instead of inspecting driver errors.
package repository

import "errors"

// ErrEquipmentNotFound is returned when a referenced equipment row does
// not exist.  Handlers translate this into an HTTP 404 response.
var ErrEquipmentNotFound = errors.New("equipment not found")

// ErrBookingNotFound is returned when a referenced booking row does not
// exist.  Handlers translate this into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrNotPending is returned when a state transition requires a PENDING
// booking but the row has already been confirmed or cancelled.  The
// guarded UPDATE affects zero rows in that case, so a lost race with a
// concurrent transition surfaces as this error rather than a double write.
var ErrNotPending = errors.New("booking is not pending")
