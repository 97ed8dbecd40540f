// Package service contains the booking lifecycle orchestration.  The
// lifecycle gates every booking on the distributed equipment lock: a
// PENDING row only ever exists while its renter held the lock, and any
// failure after the lock was taken releases it before the error propagates.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/queue"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

var (
	// ErrInvalidDateRange is returned when the end date is not after the
	// start date.  Validation errors are fatal for the request and never
	// retried.
	ErrInvalidDateRange = errors.New("end date must be after start date")

	// ErrEquipmentUnavailable is returned when the target equipment is
	// inactive or already rented out.
	ErrEquipmentUnavailable = errors.New("equipment is not available for booking")

	// ErrAlreadyProcessed is returned when a confirm or cancel targets a
	// booking that has already reached a terminal state.
	ErrAlreadyProcessed = errors.New("booking already processed")
)

// EquipmentStore is the subset of the equipment repository the lifecycle
// needs.
type EquipmentStore interface {
	GetByID(ctx context.Context, id string) (*model.Equipment, error)
}

// BookingStore is the subset of the booking repository the lifecycle needs.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	PendingByEquipment(ctx context.Context, equipmentID string) (*model.Booking, error)
	Confirm(ctx context.Context, bookingID, paymentRef string) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*model.Booking, error)
}

// Locker is the lock manager surface used by the lifecycle.
type Locker interface {
	Acquire(ctx context.Context, equipmentID, holderID string, ttl time.Duration) error
	Release(ctx context.Context, equipmentID, holderID string) (bool, error)
	Check(ctx context.Context, equipmentID string) (model.LockInfo, error)
	TTL() time.Duration
}

// InitiateResult is returned to the renter after a successful initiate:
// the booking to track, the payment session to complete, and how long the
// lock (and with it the payment window) lasts.
type InitiateResult struct {
	BookingID  string
	PaymentURL string
	ExpiresIn  time.Duration
}

// BookingService owns the booking state machine:
// PENDING -> CONFIRMED or PENDING -> CANCELLED, nothing else.
type BookingService struct {
	equipment EquipmentStore
	bookings  BookingStore
	locks     Locker
	payments  PaymentSessions

	// PublishConfirmed is invoked after a successful confirmation.  Failures
	// are logged by the publisher and ignored here; eventing is best effort.
	PublishConfirmed func(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// NewBookingService constructs the lifecycle with its collaborators.  All
// dependencies must be non-nil.
func NewBookingService(equipment EquipmentStore, bookings BookingStore, locks Locker, payments PaymentSessions) *BookingService {
	if equipment == nil || bookings == nil || locks == nil || payments == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{
		equipment:        equipment,
		bookings:         bookings,
		locks:            locks,
		payments:         payments,
		PublishConfirmed: queue.PublishBookingConfirmed,
	}
}

// Initiate starts a booking: acquire the equipment lock, persist a PENDING
// booking, and open a payment session.  A lock conflict propagates to the
// caller untouched and leaves no booking row behind.  Any failure after the
// lock was acquired releases it before the error is returned, so the
// equipment is never wedged until TTL expiry.
func (s *BookingService) Initiate(ctx context.Context, equipmentID, renterID string, start, end time.Time) (*InitiateResult, error) {
	if !end.After(start) {
		return nil, ErrInvalidDateRange
	}

	s.reapAbandoned(ctx, equipmentID)

	if err := s.locks.Acquire(ctx, equipmentID, renterID, 0); err != nil {
		return nil, err
	}

	res, err := s.initiateLocked(ctx, equipmentID, renterID, start, end)
	if err != nil {
		if _, relErr := s.locks.Release(ctx, equipmentID, renterID); relErr != nil {
			log.Printf("booking: compensating lock release failed for equipment %s: %v", equipmentID, relErr)
		}
		return nil, err
	}
	return res, nil
}

func (s *BookingService) initiateLocked(ctx context.Context, equipmentID, renterID string, start, end time.Time) (*InitiateResult, error) {
	eq, err := s.equipment.GetByID(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	if eq.Status != model.EquipmentStatusActive || !eq.Available {
		return nil, ErrEquipmentUnavailable
	}

	total := eq.DailyRateCents * uint64(billedDays(start, end))

	booking := &model.Booking{
		ID:          uuid.NewString(),
		EquipmentID: equipmentID,
		RenterID:    renterID,
		StartDate:   start,
		EndDate:     end,
		TotalCents:  total,
		Status:      model.BookingStatusPending,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	paymentURL, err := s.payments.CreateSession(ctx, booking.ID, total)
	if err != nil {
		// The PENDING row stays behind; with the lock released it will be
		// reaped on the next initiate for this equipment.
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	return &InitiateResult{
		BookingID:  booking.ID,
		PaymentURL: paymentURL,
		ExpiresIn:  s.locks.TTL(),
	}, nil
}

// billedDays counts whole rental days, rounding a partial final day up.
// A booking is always billed for at least one day.
func billedDays(start, end time.Time) int64 {
	days := int64(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// reapAbandoned cancels a leftover PENDING booking for this equipment whose
// lock has already expired (e.g. the renter abandoned payment).  There is
// no background sweeper; stale bookings are reconciled lazily here, at the
// next time someone touches the equipment.
func (s *BookingService) reapAbandoned(ctx context.Context, equipmentID string) {
	stale, err := s.bookings.PendingByEquipment(ctx, equipmentID)
	if err != nil {
		if !errors.Is(err, repository.ErrBookingNotFound) {
			log.Printf("booking: pending lookup failed for equipment %s: %v", equipmentID, err)
		}
		return
	}
	info, err := s.locks.Check(ctx, equipmentID)
	if err != nil || info.Locked {
		return
	}
	if _, err := s.bookings.Cancel(ctx, stale.ID); err != nil {
		if !errors.Is(err, repository.ErrNotPending) {
			log.Printf("booking: failed to cancel abandoned booking %s: %v", stale.ID, err)
		}
		return
	}
	log.Printf("booking: cancelled abandoned pending booking %s for equipment %s", stale.ID, equipmentID)
}

// Confirm finalizes a booking after payment.  It is idempotent on the
// payment reference: a replayed confirm with the same reference returns the
// confirmed booking as a no-op success, while a different reference or a
// cancelled booking is rejected with ErrAlreadyProcessed.  On the first
// confirmation the equipment's availability is flipped off in the same
// transaction and the renter's lock is released.
func (s *BookingService) Confirm(ctx context.Context, bookingID, paymentRef string) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case model.BookingStatusConfirmed:
		if b.PaymentRef != nil && *b.PaymentRef == paymentRef {
			return b, nil
		}
		return nil, ErrAlreadyProcessed
	case model.BookingStatusCancelled:
		return nil, ErrAlreadyProcessed
	}

	confirmed, err := s.bookings.Confirm(ctx, bookingID, paymentRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}

	s.releaseLock(ctx, confirmed)
	s.publishConfirmed(ctx, confirmed)
	return confirmed, nil
}

// Cancel aborts a PENDING booking and releases the renter's lock as part of
// the same logical operation.  Confirming or cancelling a finalized booking
// is an error, never a silent no-op.
func (s *BookingService) Cancel(ctx context.Context, bookingID string) (*model.Booking, error) {
	cancelled, err := s.bookings.Cancel(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}
	s.releaseLock(ctx, cancelled)
	return cancelled, nil
}

// releaseLock drops the lock held by the booking's renter.  A false result
// is benign (the lock already expired); a store failure is logged and not
// surfaced, since the booking transition itself succeeded.
func (s *BookingService) releaseLock(ctx context.Context, b *model.Booking) {
	if _, err := s.locks.Release(ctx, b.EquipmentID, b.RenterID); err != nil {
		log.Printf("booking: lock release failed for equipment %s: %v", b.EquipmentID, err)
	}
}

func (s *BookingService) publishConfirmed(ctx context.Context, b *model.Booking) {
	if s.PublishConfirmed == nil {
		return
	}
	paymentRef := ""
	if b.PaymentRef != nil {
		paymentRef = *b.PaymentRef
	}
	_ = s.PublishConfirmed(ctx, queue.BookingConfirmedEvent{
		BookingID:   b.ID,
		EquipmentID: b.EquipmentID,
		RenterID:    b.RenterID,
		StartDate:   b.StartDate.UTC().Format(time.RFC3339),
		EndDate:     b.EndDate.UTC().Format(time.RFC3339),
		TotalCents:  b.TotalCents,
		PaymentRef:  paymentRef,
		ConfirmedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
