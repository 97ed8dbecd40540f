// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-rental/internal/handler"
	"github.com/iliyamo/equipment-rental/internal/middleware"
)

// RegisterRoutes registers routes that need no dependencies.  Currently it
// exposes only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterRentals registers the public rental surface under /v1/rentals:
// spatial discovery, the booking lifecycle and renter-facing lock
// endpoints.  The whole group sits behind the Redis rate limiter; the
// read-heavy search endpoints additionally get the response cache.
func RegisterRentals(e *echo.Echo, s *handler.SearchHandler, b *handler.BookingHandler, l *handler.LockHandler, rateLimit, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/rentals", rateLimit)

	// Spatial discovery.
	g.GET("/nearby", s.Nearby, cache)
	g.GET("/heatmap", s.Heatmap, cache)
	g.GET("/distance/:id1/:id2", s.Distance)
	g.POST("/polygon", s.InPolygon)

	// Booking lifecycle.  Confirm and cancel are webhook endpoints invoked
	// by the payment provider.
	g.POST("/:equipmentId/book", b.Initiate)
	g.POST("/bookings/:bookingId/confirm", b.Confirm)
	g.POST("/bookings/:bookingId/cancel", b.Cancel)

	// Renter-facing lock endpoints.
	g.GET("/:equipmentId/lock-status", l.Status)
	g.POST("/:equipmentId/extend-lock", l.Extend)
}

// RegisterLockAdmin registers the privileged lock operations.  Both
// endpoints require a valid admin token: the active listing is
// monitoring-only, and force-unlock bypasses lock ownership for operator
// recovery of a stuck lock.
func RegisterLockAdmin(e *echo.Echo, l *handler.LockHandler, jwtSecret string) {
	g := e.Group(
		"/v1/rentals",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)
	g.GET("/locks/active", l.Active)
	g.POST("/:equipmentId/force-unlock", l.ForceUnlock)
}
