package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-rental/internal/geo"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

// Search defaults, matching the query parameters' documented behavior.
const (
	defaultRadiusKm   = 50.0
	defaultLimit      = 50
	maxLimit          = 200
	defaultGridSizeKm = 10.0
)

// RentalSearch is the read-only spatial query surface the handler depends
// on; implemented by repository.EquipmentSearch.
type RentalSearch interface {
	FindNearby(ctx context.Context, q repository.NearbyQuery) ([]repository.NearbyEquipmentRow, error)
	DistanceBetween(ctx context.Context, idA, idB string) (float64, error)
	Heatmap(ctx context.Context, gridSizeKm float64) ([]repository.HeatmapBucket, error)
	FindInPolygon(ctx context.Context, vertices [][2]float64) ([]repository.NearbyEquipmentRow, error)
}

// SearchHandler serves the equipment discovery endpoints.  Coordinate and
// shape validation happens here, before anything reaches the spatial store;
// validation failures are 400s and are never retried downstream.
type SearchHandler struct {
	search RentalSearch
}

// NewSearchHandler constructs a SearchHandler.  The search dependency must
// be non-nil.
func NewSearchHandler(search RentalSearch) *SearchHandler {
	if search == nil {
		panic("nil search passed to NewSearchHandler")
	}
	return &SearchHandler{search: search}
}

// Nearby handles GET /v1/rentals/nearby.  Required query parameters are lat
// and lon; radius (km), type and limit are optional.
func (h *SearchHandler) Nearby(c echo.Context) error {
	latStr, lonStr := c.QueryParam("lat"), c.QueryParam("lon")
	if latStr == "" || lonStr == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lat and lon are required"})
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coordinates"})
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coordinates"})
	}
	if err := geo.ValidateCoordinates(lat, lon); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	radiusKm := defaultRadiusKm
	if v := c.QueryParam("radius"); v != "" {
		radiusKm, err = strconv.ParseFloat(v, 64)
		if err != nil || radiusKm <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid radius"})
		}
	}
	limit := defaultLimit
	if v := c.QueryParam("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		if limit > maxLimit {
			limit = maxLimit
		}
	}

	results, err := h.search.FindNearby(c.Request().Context(), repository.NearbyQuery{
		Latitude:  lat,
		Longitude: lon,
		RadiusKm:  radiusKm,
		Type:      c.QueryParam("type"),
		Limit:     limit,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}

	eqType := c.QueryParam("type")
	if eqType == "" {
		eqType = "all"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  results,
		"count": len(results),
		"query": echo.Map{
			"center":    echo.Map{"lat": lat, "lon": lon},
			"radius_km": radiusKm,
			"type":      eqType,
		},
	})
}

// Heatmap handles GET /v1/rentals/heatmap.  The optional grid_size query
// parameter is the cell size in kilometres.
func (h *SearchHandler) Heatmap(c echo.Context) error {
	gridSizeKm := defaultGridSizeKm
	if v := c.QueryParam("grid_size"); v != "" {
		var err error
		gridSizeKm, err = strconv.ParseFloat(v, 64)
		if err != nil || gridSizeKm <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid grid_size"})
		}
	}

	buckets, err := h.search.Heatmap(c.Request().Context(), gridSizeKm)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "heatmap failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":         buckets,
		"grid_size_km": gridSizeKm,
	})
}

// Distance handles GET /v1/rentals/distance/:id1/:id2 and returns the
// great-circle distance between two stored equipment points.
func (h *SearchHandler) Distance(c echo.Context) error {
	idA, idB := c.Param("id1"), c.Param("id2")
	if idA == "" || idB == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "two equipment ids are required"})
	}

	km, err := h.search.DistanceBetween(c.Request().Context(), idA, idB)
	if err != nil {
		if errors.Is(err, repository.ErrEquipmentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "equipment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "distance failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"equipment_id_1": idA,
		"equipment_id_2": idB,
		"distance_km":    km,
	})
}

// InPolygon handles POST /v1/rentals/polygon.  The body carries a closed
// ring of [lon, lat] vertices; the first vertex must be repeated as the
// last.
func (h *SearchHandler) InPolygon(c echo.Context) error {
	var body struct {
		Vertices [][2]float64 `json:"vertices"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	results, err := h.search.FindInPolygon(c.Request().Context(), body.Vertices)
	if err != nil {
		switch {
		case errors.Is(err, geo.ErrRingNotClosed),
			errors.Is(err, geo.ErrRingTooSmall),
			errors.Is(err, geo.ErrInvalidLatitude),
			errors.Is(err, geo.ErrInvalidLongitude):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "polygon search failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  results,
		"count": len(results),
	})
}
