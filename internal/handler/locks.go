package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-rental/internal/model"
)

// LockAdmin is the lock manager surface the handler depends on;
// implemented by lock.Manager.
type LockAdmin interface {
	Check(ctx context.Context, equipmentID string) (model.LockInfo, error)
	Extend(ctx context.Context, equipmentID, holderID string, additional time.Duration) (bool, error)
	ForceRelease(ctx context.Context, equipmentID string) (bool, error)
	ListActive(ctx context.Context) ([]model.ActiveLock, error)
}

// LockHandler serves lock inspection and the privileged recovery
// endpoints.  Status and extend are renter-facing; the active listing and
// force-unlock sit behind the admin guard registered by the router.
type LockHandler struct {
	locks LockAdmin
}

// NewLockHandler constructs a LockHandler.  The lock dependency must be
// non-nil.
func NewLockHandler(locks LockAdmin) *LockHandler {
	if locks == nil {
		panic("nil lock manager passed to NewLockHandler")
	}
	return &LockHandler{locks: locks}
}

// Status handles GET /v1/rentals/:equipmentId/lock-status.
func (h *LockHandler) Status(c echo.Context) error {
	info, err := h.locks.Check(c.Request().Context(), c.Param("equipmentId"))
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable"})
	}
	if !info.Locked {
		return c.JSON(http.StatusOK, echo.Map{"locked": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"locked":     true,
		"holder_id":  info.HolderID,
		"expires_in": int(info.ExpiresIn / time.Second),
	})
}

// Extend handles POST /v1/rentals/:equipmentId/extend-lock.  A renter whose
// payment is taking longer can add time to the remaining TTL; extension
// requires holding the lock.
func (h *LockHandler) Extend(c echo.Context) error {
	equipmentID := c.Param("equipmentId")
	var body struct {
		RenterID          string `json:"renter_id"`
		AdditionalSeconds int    `json:"additional_seconds"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.RenterID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "renter_id is required"})
	}
	if body.AdditionalSeconds <= 0 {
		body.AdditionalSeconds = 300
	}

	ok, err := h.locks.Extend(c.Request().Context(), equipmentID, body.RenterID,
		time.Duration(body.AdditionalSeconds)*time.Second)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable"})
	}
	if !ok {
		return c.JSON(http.StatusConflict, echo.Map{
			"extended": false,
			"error":    "lock is not held by this renter",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"extended": true})
}

// Active handles GET /v1/rentals/locks/active (admin only).
func (h *LockHandler) Active(c echo.Context) error {
	locks, err := h.locks.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable"})
	}
	out := make([]echo.Map, 0, len(locks))
	for _, l := range locks {
		out = append(out, echo.Map{
			"equipment_id": l.EquipmentID,
			"holder_id":    l.HolderID,
			"expires_in":   int(l.ExpiresIn / time.Second),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out, "count": len(out)})
}

// ForceUnlock handles POST /v1/rentals/:equipmentId/force-unlock (admin
// only).  It bypasses the ownership check, so every call is logged with the
// operator who triggered it.
func (h *LockHandler) ForceUnlock(c echo.Context) error {
	equipmentID := c.Param("equipmentId")
	operator, _ := c.Get("user_id").(string)

	released, err := h.locks.ForceRelease(c.Request().Context(), equipmentID)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable"})
	}
	log.Printf("locks: force release of equipment %s by operator %s (released=%t)",
		equipmentID, operator, released)

	if !released {
		return c.JSON(http.StatusOK, echo.Map{
			"released": false,
			"message":  "no lock found for this equipment",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"released": true})
}
