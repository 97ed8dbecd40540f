package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-rental/internal/lock"
	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/repository"
	"github.com/iliyamo/equipment-rental/internal/service"
)

// BookingFlow is the lifecycle surface the handler depends on; implemented
// by service.BookingService.
type BookingFlow interface {
	Initiate(ctx context.Context, equipmentID, renterID string, start, end time.Time) (*service.InitiateResult, error)
	Confirm(ctx context.Context, bookingID, paymentRef string) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*model.Booking, error)
}

// BookingHandler serves the booking lifecycle endpoints.  It maps lifecycle
// outcomes to status codes: 409 for lock conflicts and already-finalized
// bookings, 404 for unknown references, 400 for validation failures and 503
// when the lock store is unreachable.  A conflict is never swallowed and
// never retried here.
type BookingHandler struct {
	bookings BookingFlow
}

// NewBookingHandler constructs a BookingHandler.  The lifecycle dependency
// must be non-nil.
func NewBookingHandler(bookings BookingFlow) *BookingHandler {
	if bookings == nil {
		panic("nil booking flow passed to NewBookingHandler")
	}
	return &BookingHandler{bookings: bookings}
}

// Initiate handles POST /v1/rentals/:equipmentId/book.  On success the
// renter receives the booking id, the payment URL and the payment window in
// seconds; on a lock conflict the current holder and remaining TTL.
func (h *BookingHandler) Initiate(c echo.Context) error {
	equipmentID := c.Param("equipmentId")
	if equipmentID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "equipment id is required"})
	}

	var body struct {
		RenterID  string `json:"renter_id"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.RenterID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "renter_id is required"})
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_date"})
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_date"})
	}

	res, err := h.bookings.Initiate(c.Request().Context(), equipmentID, body.RenterID, start, end)
	if err != nil {
		var conflict *lock.ConflictError
		switch {
		case errors.As(err, &conflict):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":      "equipment is currently being booked by another user",
				"locked_by":  conflict.HolderID,
				"expires_in": int(conflict.ExpiresIn / time.Second),
			})
		case errors.Is(err, service.ErrInvalidDateRange):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrEquipmentUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrEquipmentNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "equipment not found"})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "booking could not be initiated"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":  res.BookingID,
		"payment_url": res.PaymentURL,
		"expires_in":  int(res.ExpiresIn / time.Second),
	})
}

// Confirm handles POST /v1/rentals/bookings/:bookingId/confirm, the webhook
// called by the payment provider.  Replays with the same payment reference
// are no-op successes.
func (h *BookingHandler) Confirm(c echo.Context) error {
	bookingID := c.Param("bookingId")
	var body struct {
		PaymentID string `json:"payment_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PaymentID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_id is required"})
	}

	booking, err := h.bookings.Confirm(c.Request().Context(), bookingID, body.PaymentID)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": booking})
}

// Cancel handles POST /v1/rentals/bookings/:bookingId/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	bookingID := c.Param("bookingId")

	booking, err := h.bookings.Cancel(c.Request().Context(), bookingID)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": booking})
}

func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, service.ErrAlreadyProcessed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already processed"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking operation failed"})
}

// parseDate accepts RFC3339 timestamps or plain dates (2006-01-02).
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
