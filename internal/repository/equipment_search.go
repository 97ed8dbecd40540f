package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/equipment-rental/internal/geo"
)

// NearbyQuery defines the filters for a radius search around a point.
// Coordinates must have been validated before the query is built.
type NearbyQuery struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	Type      string
	Limit     int
}

// NearbyEquipmentRow is one radius search result with its computed
// great-circle distance from the search center.
type NearbyEquipmentRow struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Address        string  `json:"address"`
	OwnerID        string  `json:"owner_id"`
	DailyRateCents uint64  `json:"daily_rate_cents"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	DistanceKm     float64 `json:"distance_km"`
}

// HeatmapBucket is one non-empty cell of the density grid: the number of
// listings that fall into the cell and the centroid of their positions.
type HeatmapBucket struct {
	Count     uint64  `json:"count"`
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
}

// EquipmentSearch runs the read-only spatial discovery queries.  All
// statements are parameterized; user-supplied values never reach the query
// text, including the polygon ring which is rebuilt as WKT from parsed
// floats (see geo.PolygonWKT).
type EquipmentSearch struct {
	db *sql.DB
}

// NewEquipmentSearch returns an EquipmentSearch bound to the provided database.
func NewEquipmentSearch(db *sql.DB) *EquipmentSearch { return &EquipmentSearch{db: db} }

// FindNearby returns active, available equipment within q.RadiusKm of the
// search center, closest first.  Ties are broken by id so the ordering is
// deterministic.  ST_Distance_Sphere takes POINT(longitude, latitude) and
// returns meters.
func (r *EquipmentSearch) FindNearby(ctx context.Context, q NearbyQuery) ([]NearbyEquipmentRow, error) {
	query := `SELECT
			e.id,
			e.name,
			e.type,
			e.address,
			e.owner_id,
			e.daily_rate_cents,
			e.latitude,
			e.longitude,
			ST_Distance_Sphere(POINT(e.longitude, e.latitude), POINT(?, ?)) / 1000 AS distance_km
		FROM equipment e
		WHERE e.status = 'active' AND e.available = TRUE`
	args := []any{q.Longitude, q.Latitude}

	if q.Type != "" {
		query += ` AND e.type = ?`
		args = append(args, q.Type)
	}

	query += `
		HAVING distance_km <= ?
		ORDER BY distance_km ASC, e.id ASC
		LIMIT ?`
	args = append(args, q.RadiusKm, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]NearbyEquipmentRow, 0, q.Limit)
	for rows.Next() {
		var d NearbyEquipmentRow
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Type, &d.Address, &d.OwnerID,
			&d.DailyRateCents, &d.Latitude, &d.Longitude, &d.DistanceKm,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DistanceBetween returns the great-circle distance in kilometres between
// two stored equipment points.  Returns ErrEquipmentNotFound when either id
// is unknown.
func (r *EquipmentSearch) DistanceBetween(ctx context.Context, idA, idB string) (float64, error) {
	const query = `SELECT
			ST_Distance_Sphere(
				POINT(a.longitude, a.latitude),
				POINT(b.longitude, b.latitude)
			) / 1000
		FROM equipment a
		JOIN equipment b
		WHERE a.id = ? AND b.id = ?`

	var km float64
	err := r.db.QueryRowContext(ctx, query, idA, idB).Scan(&km)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrEquipmentNotFound
	}
	if err != nil {
		return 0, err
	}
	return km, nil
}

// Heatmap buckets all active, available equipment into a regular grid and
// returns one row per non-empty cell.  The cell size in degrees is derived
// from gridSizeKm; bucket membership is floor(lat/cell), floor(lon/cell),
// so any two runs over the same input produce identical buckets.  Densest
// cells come first, with centroid as tiebreak for a stable order.
func (r *EquipmentSearch) Heatmap(ctx context.Context, gridSizeKm float64) ([]HeatmapBucket, error) {
	cell := geo.CellSizeDeg(gridSizeKm)

	const query = `SELECT
			COUNT(*) AS cnt,
			AVG(e.latitude) AS center_lat,
			AVG(e.longitude) AS center_lon
		FROM equipment e
		WHERE e.status = 'active' AND e.available = TRUE
		GROUP BY FLOOR(e.latitude / ?), FLOOR(e.longitude / ?)
		ORDER BY cnt DESC, center_lat ASC, center_lon ASC`

	rows, err := r.db.QueryContext(ctx, query, cell, cell)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HeatmapBucket, 0)
	for rows.Next() {
		var b HeatmapBucket
		if err := rows.Scan(&b.Count, &b.CenterLat, &b.CenterLon); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindInPolygon returns active, available equipment whose point lies inside
// the given closed (lon, lat) ring.  The ring is validated and rendered to
// WKT before it is bound as a parameter.
func (r *EquipmentSearch) FindInPolygon(ctx context.Context, vertices [][2]float64) ([]NearbyEquipmentRow, error) {
	wkt, err := geo.PolygonWKT(vertices)
	if err != nil {
		return nil, err
	}

	const query = `SELECT
			e.id,
			e.name,
			e.type,
			e.address,
			e.owner_id,
			e.daily_rate_cents,
			e.latitude,
			e.longitude
		FROM equipment e
		WHERE e.status = 'active' AND e.available = TRUE
			AND ST_Contains(ST_GeomFromText(?), POINT(e.longitude, e.latitude))
		ORDER BY e.id ASC`

	rows, err := r.db.QueryContext(ctx, query, wkt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]NearbyEquipmentRow, 0)
	for rows.Next() {
		var d NearbyEquipmentRow
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Type, &d.Address, &d.OwnerID,
			&d.DailyRateCents, &d.Latitude, &d.Longitude,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
