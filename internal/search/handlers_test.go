package search

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/enviofleett/mymoto-sub019/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func TestSearchHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, device_id, start_time`).
		WithArgs("dev-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "device_id", "start_time", "end_time",
			"start_lat", "start_lng", "end_lat", "end_lng",
			"distance_km", "avg_speed_kmh", "max_speed_kmh", "duration_seconds", "created_at"}).
			AddRow("trip-1", "dev-1", start, start.Add(20*time.Minute), 6.0, 3.0, 6.45, 3.39, 8.0, 24.0, 60.0, int64(1200), time.Now()))

	resolver := &staticResolver{names: map[string]string{
		geocodeKey(6.45, 3.39): "Lagos",
	}}
	svc := NewService(trip.NewService(mock), resolver, IsGhostByThresholds(trip.NewGhostFilter(15*time.Second, 0.01)))

	app := fiber.New()
	RegisterRoutes(app.Group("/search"), svc, func(c *fiber.Ctx) error { return c.Next() })

	req := httptest.NewRequest(http.MethodGet, "/search/trips?device_id=dev-1&q=lagos", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("search status: %v", err)
	}
}

func TestSearchHandlerBadRequest(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/search"), NewService(trip.NewService(nil), nil, nil),
		func(c *fiber.Ctx) error { return c.Next() })

	req := httptest.NewRequest(http.MethodGet, "/search/trips", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request without device_id")
	}

	req = httptest.NewRequest(http.MethodGet, "/search/trips?device_id=dev-1&from=bad", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for malformed window")
	}
}
