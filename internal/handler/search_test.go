package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/equipment-rental/internal/geo"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

type fakeSearch struct {
	nearby      []repository.NearbyEquipmentRow
	nearbyQuery repository.NearbyQuery
	nearbyCalls int
	distance    float64
	distanceErr error
	buckets     []repository.HeatmapBucket
	polygon     []repository.NearbyEquipmentRow
	polygonErr  error
}

func (f *fakeSearch) FindNearby(_ context.Context, q repository.NearbyQuery) ([]repository.NearbyEquipmentRow, error) {
	f.nearbyCalls++
	f.nearbyQuery = q
	return f.nearby, nil
}

func (f *fakeSearch) DistanceBetween(_ context.Context, _, _ string) (float64, error) {
	if f.distanceErr != nil {
		return 0, f.distanceErr
	}
	return f.distance, nil
}

func (f *fakeSearch) Heatmap(_ context.Context, _ float64) ([]repository.HeatmapBucket, error) {
	return f.buckets, nil
}

func (f *fakeSearch) FindInPolygon(_ context.Context, _ [][2]float64) ([]repository.NearbyEquipmentRow, error) {
	if f.polygonErr != nil {
		return nil, f.polygonErr
	}
	return f.polygon, nil
}

func searchRequest(t *testing.T, target string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	fake := &fakeSearch{}
	h := NewSearchHandler(fake)

	rec, c := searchRequest(t, "/v1/rentals/nearby?lat=52.52")
	require.NoError(t, h.Nearby(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fake.nearbyCalls, "validation failures must not reach the store")
}

func TestNearbyRejectsOutOfRangeCoordinates(t *testing.T) {
	fake := &fakeSearch{}
	h := NewSearchHandler(fake)

	rec, c := searchRequest(t, "/v1/rentals/nearby?lat=95&lon=13.4")
	require.NoError(t, h.Nearby(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, c = searchRequest(t, "/v1/rentals/nearby?lat=52.5&lon=-200")
	require.NoError(t, h.Nearby(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, c = searchRequest(t, "/v1/rentals/nearby?lat=abc&lon=13.4")
	require.NoError(t, h.Nearby(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, fake.nearbyCalls)
}

func TestNearbyRejectsBadRadiusAndLimit(t *testing.T) {
	fake := &fakeSearch{}
	h := NewSearchHandler(fake)

	rec, c := searchRequest(t, "/v1/rentals/nearby?lat=52.5&lon=13.4&radius=-3")
	require.NoError(t, h.Nearby(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, c = searchRequest(t, "/v1/rentals/nearby?lat=52.5&lon=13.4&limit=0")
	require.NoError(t, h.Nearby(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, fake.nearbyCalls)
}

func TestNearbyDefaultsAndLimitCap(t *testing.T) {
	fake := &fakeSearch{nearby: []repository.NearbyEquipmentRow{}}
	h := NewSearchHandler(fake)

	rec, c := searchRequest(t, "/v1/rentals/nearby?lat=52.52&lon=13.405")
	require.NoError(t, h.Nearby(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50.0, fake.nearbyQuery.RadiusKm)
	assert.Equal(t, 50, fake.nearbyQuery.Limit)

	_, c = searchRequest(t, "/v1/rentals/nearby?lat=52.52&lon=13.405&limit=5000&radius=12&type=excavator")
	require.NoError(t, h.Nearby(c))
	assert.Equal(t, 200, fake.nearbyQuery.Limit)
	assert.Equal(t, 12.0, fake.nearbyQuery.RadiusKm)
	assert.Equal(t, "excavator", fake.nearbyQuery.Type)
}

func TestNearbyResponseShape(t *testing.T) {
	fake := &fakeSearch{nearby: []repository.NearbyEquipmentRow{
		{ID: "eq-1", Name: "Mini excavator", DistanceKm: 3.2},
		{ID: "eq-2", Name: "Scissor lift", DistanceKm: 7.9},
	}}
	h := NewSearchHandler(fake)

	rec, c := searchRequest(t, "/v1/rentals/nearby?lat=52.52&lon=13.405")
	require.NoError(t, h.Nearby(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
	query := body["query"].(map[string]any)
	assert.Equal(t, "all", query["type"])
	assert.Equal(t, 50.0, query["radius_km"])
}

func TestHeatmapRejectsBadGridSize(t *testing.T) {
	h := NewSearchHandler(&fakeSearch{})

	rec, c := searchRequest(t, "/v1/rentals/heatmap?grid_size=0")
	require.NoError(t, h.Heatmap(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHeatmapDefaultGridSize(t *testing.T) {
	fake := &fakeSearch{buckets: []repository.HeatmapBucket{
		{CenterLat: 52.5, CenterLon: 13.4, Count: 17},
	}}
	h := NewSearchHandler(fake)

	rec, c := searchRequest(t, "/v1/rentals/heatmap")
	require.NoError(t, h.Heatmap(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, 10.0, body["grid_size_km"])
}

func TestDistanceNotFound(t *testing.T) {
	fake := &fakeSearch{distanceErr: repository.ErrEquipmentNotFound}
	h := NewSearchHandler(fake)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id1", "id2")
	c.SetParamValues("eq-1", "eq-missing")

	require.NoError(t, h.Distance(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDistanceSuccess(t *testing.T) {
	fake := &fakeSearch{distance: 41.7}
	h := NewSearchHandler(fake)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id1", "id2")
	c.SetParamValues("eq-1", "eq-2")

	require.NoError(t, h.Distance(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, 41.7, body["distance_km"])
	assert.Equal(t, "eq-1", body["equipment_id_1"])
}

func TestInPolygonMapsGeometryErrorsTo400(t *testing.T) {
	for _, geoErr := range []error{
		geo.ErrRingNotClosed,
		geo.ErrRingTooSmall,
		geo.ErrInvalidLatitude,
		geo.ErrInvalidLongitude,
	} {
		fake := &fakeSearch{polygonErr: geoErr}
		h := NewSearchHandler(fake)

		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/v1/rentals/polygon",
			jsonBody(`{"vertices":[[13,52],[13.5,52],[13,52]]}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()

		require.NoError(t, h.InPolygon(e.NewContext(req, rec)))
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "error %v", geoErr)
	}
}

func TestInPolygonStoreFailureIs500(t *testing.T) {
	fake := &fakeSearch{polygonErr: errors.New("db gone")}
	h := NewSearchHandler(fake)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/rentals/polygon",
		jsonBody(`{"vertices":[[13,52],[13.5,52],[13.5,52.5],[13,52]]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.InPolygon(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
