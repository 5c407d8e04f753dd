package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/klimakarte/station-map/internal/directory"
	"github.com/klimakarte/station-map/internal/selection"
	"github.com/klimakarte/station-map/internal/stations"
	"github.com/klimakarte/station-map/internal/stations/source"
)

// stubFetcher serves canned CSV text per path.
type stubFetcher struct {
	responses map[string]string
}

func (f *stubFetcher) FetchResource(_ context.Context, path string) (string, error) {
	if text, ok := f.responses[path]; ok {
		return text, nil
	}
	return "", fmt.Errorf("%w: %s", source.ErrNotFound, path)
}

const intradayCSV = `station_id,station_name,data_date,lat,lon,humidity,max_temp,mean_temp,min_temp
433,Berlin,202403051120,52.4675,13.4021,63,11.2,9.4,4.1
691,Bremen,202403051120,53.0451,8.7981,70,10.0,8.3,3.2
1048,Dresden,202403051120,51.1280,13.7543,66,10.8,8.9,3.7`

func newTestApp(t *testing.T) (*fiber.App, *stations.Service, *directory.Directory, *selection.Coordinator) {
	t.Helper()

	dir := directory.New()
	coord := selection.New(dir, "Berlin")

	fetcher := &stubFetcher{responses: map[string]string{
		"10min_station_data_20240305.csv": intradayCSV,
	}}
	clock := func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }
	resolver := stations.NewSnapshotResolver(stations.ModeProduction, "", clock)
	svc := stations.NewService(fetcher, resolver, dir, coord, "cities_metadata.csv")

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": true, "message": err.Error()})
		},
	})
	RegisterRoutes(app, svc, dir, coord)

	return app, svc, dir, coord
}

func loadSnapshot(t *testing.T, svc *stations.Service) {
	t.Helper()
	if err := svc.LoadSnapshot(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/search", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestSearchReturnsRankedResults(t *testing.T) {
	app, svc, _, _ := newTestApp(t)
	loadSnapshot(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/search?q=Berlin", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Query   string                   `json:"query"`
		Results []stations.StationRecord `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body.Results) == 0 || body.Results[0].Name != "Berlin" {
		t.Fatalf("unexpected results: %+v", body.Results)
	}
}

func TestStationByIDNotFound(t *testing.T) {
	app, svc, _, _ := newTestApp(t)
	loadSnapshot(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/99999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestSelectionLifecycle(t *testing.T) {
	app, svc, _, coord := newTestApp(t)
	loadSnapshot(t, svc)

	// The load's default pass selects Berlin.
	if current, ok := coord.Current(); !ok || current.Name != "Berlin" {
		t.Fatalf("expected Berlin selected after load, got %+v (ok=%v)", current, ok)
	}

	// Explicit selection replaces it.
	req := httptest.NewRequest(http.MethodPut, "/api/v1/selection",
		strings.NewReader(`{"station_id":"691"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/selection", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var selected struct {
		Station stations.StationRecord `json:"station"`
		Summary string                 `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&selected); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if selected.Station.Name != "Bremen" {
		t.Fatalf("expected Bremen selected, got %+v", selected.Station)
	}
	if !strings.Contains(selected.Summary, "mean 8.3°C") || !strings.Contains(selected.Summary, "humidity 70%") {
		t.Fatalf("unexpected selection summary: %q", selected.Summary)
	}

	// A stale id conflicts and leaves the selection alone.
	req = httptest.NewRequest(http.MethodPut, "/api/v1/selection",
		strings.NewReader(`{"station_id":"does-not-exist"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, resp.StatusCode)
	}
	if current, _ := coord.Current(); current.Name != "Bremen" {
		t.Fatalf("stale select changed the selection: %+v", current)
	}

	// Deselect.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/selection", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/selection", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestSelectionMissingBodyIsBadRequest(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/selection", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestStatusSurfacesLoadFailure(t *testing.T) {
	app, svc, _, _ := newTestApp(t)
	loadSnapshot(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var status struct {
		Stations   int    `json:"stations"`
		Generation uint64 `json:"generation"`
		LastError  string `json:"last_error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if status.Stations != 3 || status.Generation != 1 || status.LastError != "" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestMarkersProjectBothLayers(t *testing.T) {
	app, svc, _, _ := newTestApp(t)
	loadSnapshot(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/markers?layer=stations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Layer   string `json:"layer"`
		Markers []struct {
			ID       string  `json:"id"`
			Name     string  `json:"name"`
			Latitude float64 `json:"latitude"`
		} `json:"markers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body.Markers) != 3 || body.Markers[0].Name != "Berlin" {
		t.Fatalf("unexpected markers: %+v", body.Markers)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/markers?layer=bogus", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestRefreshEndpointLoadsSnapshot(t *testing.T) {
	app, _, dir, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if dir.Len() != 3 {
		t.Fatalf("expected 3 stations after refresh, got %d", dir.Len())
	}
}
