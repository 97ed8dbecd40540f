package model

import "time"

// Booking statuses.  PENDING is the only non-terminal state: a booking
// moves to CONFIRMED when payment succeeds or to CANCELLED when it is
// abandoned or explicitly cancelled.  No other transition is legal.
const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCancelled = "CANCELLED"
)

// Booking records a renter's reservation of one piece of equipment for a
// date range.  A booking row is only created after the renter has acquired
// the distributed lock on the equipment; its PENDING state is bounded
// externally by that lock's TTL, not by anything in the row itself.
//
// Fields:
//  ID          – CHAR(36) primary key (uuid).
//  EquipmentID – equipment being rented.
//  RenterID    – user renting the equipment.
//  StartDate   – rental period start.
//  EndDate     – rental period end.
//  TotalCents  – daily rate times the number of billed days, in cents.
//  Status      – PENDING, CONFIRMED or CANCELLED.
//  PaymentRef  – external payment reference, set on confirmation.
type Booking struct {
	ID          string    `json:"id"`           // bookings.id
	EquipmentID string    `json:"equipment_id"` // bookings.equipment_id
	RenterID    string    `json:"renter_id"`    // bookings.renter_id
	StartDate   time.Time `json:"start_date"`   // bookings.start_date
	EndDate     time.Time `json:"end_date"`     // bookings.end_date
	TotalCents  uint64    `json:"total_cents"`  // bookings.total_cents
	Status      string    `json:"status"`       // bookings.status
	PaymentRef  *string   `json:"payment_ref"`  // bookings.payment_ref (nullable)
	CreatedAt   time.Time `json:"created_at"`   // bookings.created_at
	UpdatedAt   time.Time `json:"updated_at"`   // bookings.updated_at
}
