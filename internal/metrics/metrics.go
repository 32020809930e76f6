package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every sync-engine metric behind its own registry so
// tests can instantiate it without fighting the global default.
type Collector struct {
	reg *prometheus.Registry

	SyncRuns        prometheus.Counter
	SyncRunsSkipped prometheus.Counter
	RateLimitHits   prometheus.Counter

	DevicesSynced *prometheus.CounterVec // outcome label: ok|failed

	TripsUpserted prometheus.Counter
	GhostsDropped prometheus.Counter

	RunDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		SyncRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncer_runs_total",
			Help: "Total vendor sync runs started.",
		}),
		SyncRunsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncer_runs_skipped_total",
			Help: "Runs skipped because a rate-limit backoff was active.",
		}),
		RateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncer_rate_limit_hits_total",
			Help: "Vendor responses that reported the caller IP as rate limited.",
		}),
		DevicesSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncer_devices_total",
			Help: "Devices processed per run, by outcome.",
		}, []string{"outcome"}),
		TripsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncer_trips_upserted_total",
			Help: "Trips written or refreshed in storage.",
		}),
		GhostsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncer_ghost_trips_dropped_total",
			Help: "Trip candidates rejected as GPS jitter.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "syncer_run_duration_seconds",
			Help:    "Wall time of a full sync run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	reg.MustRegister(
		c.SyncRuns, c.SyncRunsSkipped, c.RateLimitHits,
		c.DevicesSynced, c.TripsUpserted, c.GhostsDropped,
		c.RunDuration,
	)

	return c
}

// The methods below satisfy the runner's metrics contract.

func (c *Collector) RunInc() { c.SyncRuns.Inc() }
func (c *Collector) RunSkippedInc() { c.SyncRunsSkipped.Inc() }
func (c *Collector) RateLimitInc() { c.RateLimitHits.Inc() }
func (c *Collector) DeviceOKInc() { c.DevicesSynced.WithLabelValues("ok").Inc() }
func (c *Collector) DeviceFailInc() { c.DevicesSynced.WithLabelValues("failed").Inc() }
func (c *Collector) TripUpsertedInc() { c.TripsUpserted.Inc() }
func (c *Collector) GhostRejectedInc() { c.GhostsDropped.Inc() }
func (c *Collector) RunObserve(d time.Duration) { c.RunDuration.Observe(d.Seconds()) }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
