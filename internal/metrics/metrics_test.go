package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.RunInc()
	c.RunInc()
	c.RunSkippedInc()
	c.RateLimitInc()
	c.DeviceOKInc()
	c.DeviceOKInc()
	c.DeviceFailInc()
	c.TripUpsertedInc()
	c.GhostRejectedInc()
	c.RunObserve(2 * time.Second)

	if got := testutil.ToFloat64(c.SyncRuns); got != 2 {
		t.Fatalf("runs: got %v", got)
	}
	if got := testutil.ToFloat64(c.DevicesSynced.WithLabelValues("ok")); got != 2 {
		t.Fatalf("devices ok: got %v", got)
	}
	if got := testutil.ToFloat64(c.DevicesSynced.WithLabelValues("failed")); got != 1 {
		t.Fatalf("devices failed: got %v", got)
	}
	if got := testutil.ToFloat64(c.GhostsDropped); got != 1 {
		t.Fatalf("ghosts: got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RunInc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "syncer_runs_total 1") {
		t.Fatalf("exposition missing run counter:\n%s", rec.Body.String())
	}
}
