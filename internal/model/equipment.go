package model

import "time"

// Equipment statuses.  Only active listings are visible to search.
const (
	EquipmentStatusActive   = "active"
	EquipmentStatusInactive = "inactive"
)

// Equipment is a single rentable machine listed on the marketplace.
// Coordinates are WGS84 decimal degrees.  Money values are stored in
// cents to avoid floating point drift.
//
// Fields:
//  ID             – CHAR(36) primary key.
//  OwnerID        – user who owns the listing.
//  Name           – display name.
//  Type           – type tag used for search filtering (e.g. "tractor").
//  Description    – free-form description.
//  Address        – human readable address of the pickup point.
//  DailyRateCents – rental price per day in cents.
//  Latitude       – WGS84 latitude of the equipment location.
//  Longitude      – WGS84 longitude of the equipment location.
//  Status         – listing state (active/inactive).
//  Available      – false while a confirmed booking is in effect; flipped
//                   only by the booking lifecycle on confirmation.
type Equipment struct {
	ID             string    `json:"id"`              // equipment.id
	OwnerID        string    `json:"owner_id"`        // equipment.owner_id
	Name           string    `json:"name"`            // equipment.name
	Type           string    `json:"type"`            // equipment.type
	Description    string    `json:"description"`     // equipment.description
	Address        string    `json:"address"`         // equipment.address
	DailyRateCents uint64    `json:"daily_rate_cents"` // equipment.daily_rate_cents
	Latitude       float64   `json:"latitude"`        // equipment.latitude
	Longitude      float64   `json:"longitude"`       // equipment.longitude
	Status         string    `json:"status"`          // equipment.status
	Available      bool      `json:"available"`       // equipment.available
	CreatedAt      time.Time `json:"created_at"`      // equipment.created_at
	UpdatedAt      time.Time `json:"updated_at"`      // equipment.updated_at
}
