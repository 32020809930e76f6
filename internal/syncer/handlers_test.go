package syncer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/enviofleett/mymoto-sub019/internal/vendor"

	"github.com/gofiber/fiber/v2"
)

func passthrough(c *fiber.Ctx) error { return c.Next() }

func TestSyncRunHandler(t *testing.T) {
	api := &fakeVendor{sess: vendor.Session{Token: "tok"}}
	state := &fakeState{targets: []string{"dev-1"}}

	runner := newTestRunner(api, state, &fakeTrips{})

	app := fiber.New()
	RegisterRoutes(app.Group("/sync"), runner, passthrough)

	body, _ := json.Marshal(runRequest{
		From: runBase.Add(-time.Hour),
		To:   runBase,
	})
	req := httptest.NewRequest(http.MethodPost, "/sync/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("run status: %v", err)
	}

	var result RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.DevicesAttempted != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSyncRunHandlerBadRequests(t *testing.T) {
	runner := newTestRunner(&fakeVendor{}, &fakeState{}, &fakeTrips{})
	app := fiber.New()
	RegisterRoutes(app.Group("/sync"), runner, passthrough)

	req := httptest.NewRequest(http.MethodPost, "/sync/run", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for malformed body")
	}

	body, _ := json.Marshal(runRequest{From: runBase, To: runBase.Add(-time.Hour)})
	req = httptest.NewRequest(http.MethodPost, "/sync/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for inverted window")
	}
}
