// Package queue defines message payloads exchanged over the message broker
// plus the publisher and background consumer for them.
package queue

// BookingConfirmedEvent is published when a booking is successfully
// confirmed.  It carries enough information for downstream consumers to
// log, notify, or feed analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   string `json:"booking_id"`
	EquipmentID string `json:"equipment_id"`
	RenterID    string `json:"renter_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	TotalCents  uint64 `json:"total_cents"`
	PaymentRef  string `json:"payment_ref"`
	ConfirmedAt string `json:"confirmed_at"`
}
