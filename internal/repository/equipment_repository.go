package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/equipment-rental/internal/model"
)

// EquipmentRepo provides data access to the equipment table.  Equipment is
// read-mostly in this service: the only write is the availability flip
// performed inside the booking confirmation transaction.
type EquipmentRepo struct {
	db *sql.DB
}

// NewEquipmentRepo returns a new EquipmentRepo bound to the provided database.
func NewEquipmentRepo(db *sql.DB) *EquipmentRepo { return &EquipmentRepo{db: db} }

const equipmentColumns = `id, owner_id, name, type, description, address,
	daily_rate_cents, latitude, longitude, status, available, created_at, updated_at`

// GetByID loads one equipment row.  Returns ErrEquipmentNotFound when the
// id is unknown.
func (r *EquipmentRepo) GetByID(ctx context.Context, id string) (*model.Equipment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id)
	return scanEquipment(row)
}

// setAvailabilityTx updates the availability flag within the provided
// transaction.  Zero rows means the equipment row is gone; surfacing that
// rolls back the transition that referenced it.
func setAvailabilityTx(ctx context.Context, tx *sql.Tx, id string, available bool) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE equipment SET available = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		available, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEquipmentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEquipment(row rowScanner) (*model.Equipment, error) {
	var e model.Equipment
	err := row.Scan(
		&e.ID, &e.OwnerID, &e.Name, &e.Type, &e.Description, &e.Address,
		&e.DailyRateCents, &e.Latitude, &e.Longitude, &e.Status, &e.Available,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEquipmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
