package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/equipment-rental/internal/model"
)

// BookingRepo provides data access to the bookings table.  Status
// transitions are guarded UPDATEs on the PENDING state so that a lost race
// with a concurrent transition affects zero rows instead of overwriting a
// terminal state.  All timestamps are UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, equipment_id, renter_id, start_date, end_date,
	total_cents, status, payment_ref, created_at, updated_at`

// Create inserts a new booking row.  The caller sets ID, dates, total and
// status; CreatedAt/UpdatedAt are stamped here.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (id, equipment_id, renter_id, start_date, end_date,
			total_cents, status, payment_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.EquipmentID, b.RenterID, b.StartDate.UTC(), b.EndDate.UTC(),
		b.TotalCents, b.Status, b.PaymentRef, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

// GetByID loads one booking row.  Returns ErrBookingNotFound when the id is
// unknown.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// PendingByEquipment returns the PENDING booking for a piece of equipment,
// if one exists.  The equipment/lock pairing allows at most one, but the
// query orders by creation time and takes the oldest in case historical
// data predates that rule.
func (r *BookingRepo) PendingByEquipment(ctx context.Context, equipmentID string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE equipment_id = ? AND status = ?
		ORDER BY created_at ASC LIMIT 1`,
		equipmentID, model.BookingStatusPending)
	return scanBooking(row)
}

// Confirm transitions a PENDING booking to CONFIRMED, attaches the payment
// reference and flips the equipment's availability off, all in one
// transaction.  Returns ErrNotPending when the booking has already been
// finalized and the refreshed booking on success.
func (r *BookingRepo) Confirm(ctx context.Context, bookingID, paymentRef string) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings
		SET status = ?, payment_ref = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND status = ?`,
		model.BookingStatusConfirmed, paymentRef, bookingID, model.BookingStatusPending)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Either the booking does not exist or it is no longer PENDING.
		exists, err := r.existsTx(ctx, tx, bookingID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrBookingNotFound
		}
		return nil, ErrNotPending
	}

	var equipmentID string
	if err := tx.QueryRowContext(ctx,
		`SELECT equipment_id FROM bookings WHERE id = ?`, bookingID).Scan(&equipmentID); err != nil {
		return nil, err
	}
	if err := setAvailabilityTx(ctx, tx, equipmentID, false); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return r.GetByID(ctx, bookingID)
}

// Cancel transitions a PENDING booking to CANCELLED.  Returns ErrNotPending
// when the booking has already been finalized and the refreshed booking on
// success.
func (r *BookingRepo) Cancel(ctx context.Context, bookingID string) (*model.Booking, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings
		SET status = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND status = ?`,
		model.BookingStatusCancelled, bookingID, model.BookingStatusPending)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, bookingID); err != nil {
			return nil, err
		}
		return nil, ErrNotPending
	}
	return r.GetByID(ctx, bookingID)
}

func (r *BookingRepo) existsTx(ctx context.Context, tx *sql.Tx, bookingID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM bookings WHERE id = ?`, bookingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID, &b.EquipmentID, &b.RenterID, &b.StartDate, &b.EndDate,
		&b.TotalCents, &b.Status, &b.PaymentRef, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
