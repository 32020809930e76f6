package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/enviofleett/mymoto-sub019/internal/config"
	"github.com/enviofleett/mymoto-sub019/internal/shared/geo"
	"github.com/enviofleett/mymoto-sub019/internal/trip"
	"github.com/enviofleett/mymoto-sub019/internal/vendor"
)

// Vendor tokens observed to last a day; refresh well before that.
const tokenTTL = 20 * time.Hour

// VendorAPI is the slice of the vendor client the runner needs.
type VendorAPI interface {
	Login(ctx context.Context, account, passwordHash string) (vendor.Session, error)
	QueryTrips(ctx context.Context, sess vendor.Session, deviceIDs []string, from, to time.Time) ([]vendor.TripRecord, error)
	ReportACCByTime(ctx context.Context, sess vendor.Session, deviceIDs []string, from, to time.Time, offset int) ([]vendor.ACCRecord, error)
}

// TripStore persists accepted trips and serves buffered telemetry.
type TripStore interface {
	UpsertTrip(ctx context.Context, t trip.Trip) (trip.Trip, error)
	SamplesInWindow(ctx context.Context, deviceID string, from, to time.Time) ([]trip.PositionSample, error)
}

// StateAPI is the externalized shared sync state.
type StateAPI interface {
	Load(ctx context.Context) (SyncState, error)
	Save(ctx context.Context, st SyncState) error
	SetBackoff(ctx context.Context, until time.Time) error
	SyncTargets(ctx context.Context, limit int) ([]string, error)
	MarkDeviceSynced(ctx context.Context, deviceID string, at time.Time) error
	MarkDeviceFailed(ctx context.Context, deviceID string) error
}

// Broadcaster pushes live sync events to connected playback clients.
type Broadcaster interface {
	Broadcast(deviceID string, payload []byte)
}

// TripEventPublisher hands accepted trips to downstream consumers.
type TripEventPublisher interface {
	PublishTrip(t trip.Trip) error
}

// RunMetrics mirrors the collector; every method must be cheap.
type RunMetrics interface {
	RunInc()
	RunSkippedInc()
	RateLimitInc()
	DeviceOKInc()
	DeviceFailInc()
	TripUpsertedInc()
	GhostRejectedInc()
	RunObserve(d time.Duration)
}

// RunResult is the per-run outcome handed back to the scheduler.
// Runner-level errors are folded in here, never thrown past the run
// boundary.
type RunResult struct {
	DevicesAttempted int  `json:"devices_attempted"`
	DevicesSucceeded int  `json:"devices_succeeded"`
	TripsUpserted    int  `json:"trips_upserted"`
	IPLimitHit       bool `json:"ip_limit_hit"`
	Partial          bool `json:"partial"`
	Skipped          bool `json:"skipped"`
}

// Runner drives one synchronization run against the vendor platform:
// Idle -> CheckBackoff -> {Backoff-Skip | Authorize} -> FetchPerDevice -> Done.
// Devices are fetched strictly in sequence with a fixed delay between
// them; the vendor enforces per-IP rate limits and parallel fan-out
// would trip them immediately.
type Runner struct {
	cfg     config.Config
	api     VendorAPI
	state   StateAPI
	trips   TripStore
	seg     trip.Segmenter
	ghost   trip.GhostFilter
	hub     Broadcaster
	pub     TripEventPublisher
	metrics RunMetrics

	// Injectable for tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

func NewRunner(cfg config.Config, api VendorAPI, state StateAPI, trips TripStore,
	hub Broadcaster, pub TripEventPublisher, m RunMetrics) *Runner {
	return &Runner{
		cfg:     cfg,
		api:     api,
		state:   state,
		trips:   trips,
		seg:     trip.NewSegmenter(time.Duration(cfg.GapThresholdMin) * time.Minute),
		ghost:   trip.NewGhostFilter(time.Duration(cfg.GhostMinDurationS)*time.Second, cfg.GhostMinDistanceKm),
		hub:     hub,
		pub:     pub,
		metrics: m,
		Now:     time.Now,
		Sleep:   time.Sleep,
	}
}

// Run executes one sync run over the window. An explicit deviceIDs
// list bypasses the per-run cap; an empty list fetches the prioritized
// capped set from storage.
func (r *Runner) Run(ctx context.Context, deviceIDs []string, from, to time.Time) RunResult {
	started := r.Now()
	var result RunResult
	defer func() {
		if r.metrics != nil {
			r.metrics.RunInc()
			if result.Skipped {
				r.metrics.RunSkippedInc()
			}
			if result.IPLimitHit {
				r.metrics.RateLimitInc()
			}
			r.metrics.RunObserve(r.Now().Sub(started))
		}
	}()

	st, err := r.state.Load(ctx)
	if err != nil {
		log.Printf("syncer: loading state: %v", err)
	}

	// An active backoff window pre-empts the whole run. Zero vendor
	// calls may be issued until it elapses.
	if st.BackoffUntil != nil && r.Now().Before(*st.BackoffUntil) {
		result.Skipped = true
		return result
	}

	sess, err := r.authorize(ctx, &st)
	if err != nil {
		if errors.Is(err, vendor.ErrRateLimited) {
			r.enterBackoff(ctx)
			result.IPLimitHit = true
		}
		log.Printf("syncer: authorize: %v", err)
		result.Partial = true
		return result
	}

	targets := deviceIDs
	if len(targets) == 0 {
		targets, err = r.state.SyncTargets(ctx, r.cfg.MaxDevicesPerRun)
		if err != nil {
			log.Printf("syncer: listing targets: %v", err)
			result.Partial = true
			return result
		}
	}

	for i, deviceID := range targets {
		if i > 0 {
			r.Sleep(time.Duration(r.cfg.DeviceDelaySec) * time.Second)
		}
		result.DevicesAttempted++

		upserted, err := r.syncDevice(ctx, sess, deviceID, from, to)
		result.TripsUpserted += upserted
		if err == nil {
			result.DevicesSucceeded++
			if r.metrics != nil {
				r.metrics.DeviceOKInc()
			}
			if err := r.state.MarkDeviceSynced(ctx, deviceID, r.Now()); err != nil {
				log.Printf("syncer: marking %s synced: %v", deviceID, err)
			}
			continue
		}

		if r.metrics != nil {
			r.metrics.DeviceFailInc()
		}
		if markErr := r.state.MarkDeviceFailed(ctx, deviceID); markErr != nil {
			log.Printf("syncer: marking %s failed: %v", deviceID, markErr)
		}

		if errors.Is(err, vendor.ErrRateLimited) {
			// Continuing would only accumulate more rate-limit errors.
			// Abort the remainder of the run and arm the backoff.
			r.enterBackoff(ctx)
			result.IPLimitHit = true
			result.Partial = true
			return result
		}

		log.Printf("syncer: device %s: %v", deviceID, err)
		result.Partial = true
	}

	return result
}

func (r *Runner) authorize(ctx context.Context, st *SyncState) (vendor.Session, error) {
	if st.AuthToken != "" && r.Now().Before(st.TokenExpiresAt) {
		return vendor.Session{Token: st.AuthToken, ServerID: st.ServerID}, nil
	}

	var sess vendor.Session
	err := r.withRetry(func() error {
		var loginErr error
		sess, loginErr = r.api.Login(ctx, r.cfg.VendorAccount, r.cfg.VendorPasswordHash)
		return loginErr
	})
	if err != nil {
		return vendor.Session{}, err
	}

	st.AuthToken = sess.Token
	st.ServerID = sess.ServerID
	st.TokenExpiresAt = r.Now().Add(tokenTTL)
	if err := r.state.Save(ctx, *st); err != nil {
		log.Printf("syncer: persisting session: %v", err)
	}
	return sess, nil
}

func (r *Runner) enterBackoff(ctx context.Context) {
	until := r.Now().Add(time.Duration(r.cfg.BackoffMin) * time.Minute)
	if err := r.state.SetBackoff(ctx, until); err != nil {
		log.Printf("syncer: persisting backoff: %v", err)
	}
}

// syncDevice fetches one device's trips and pushes the accepted ones
// through the store. Candidate sources, in order: pre-aggregated
// vendor trips, ignition intervals, re-segmentation of buffered
// samples.
func (r *Runner) syncDevice(ctx context.Context, sess vendor.Session, deviceID string, from, to time.Time) (int, error) {
	candidates, err := r.fetchCandidates(ctx, sess, deviceID, from, to)
	if err != nil {
		return 0, err
	}

	upserted := 0
	for _, c := range candidates {
		if !c.Valid() {
			log.Printf("syncer: discarding inconsistent candidate for %s at %s", deviceID, c.StartTime)
			continue
		}
		if !r.ghost.Accept(c) {
			if r.metrics != nil {
				r.metrics.GhostRejectedInc()
			}
			continue
		}

		stored, err := r.trips.UpsertTrip(ctx, trip.FromCandidate(c))
		if err != nil {
			return upserted, err
		}
		upserted++
		if r.metrics != nil {
			r.metrics.TripUpsertedInc()
		}
		r.announce(stored)
	}
	return upserted, nil
}

func (r *Runner) fetchCandidates(ctx context.Context, sess vendor.Session, deviceID string, from, to time.Time) ([]trip.TripCandidate, error) {
	var records []vendor.TripRecord
	err := r.withRetry(func() error {
		var qErr error
		records, qErr = r.api.QueryTrips(ctx, sess, []string{deviceID}, from, to)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		return r.candidatesFromRecords(ctx, deviceID, records, from, to), nil
	}

	var accs []vendor.ACCRecord
	err = r.withRetry(func() error {
		var aErr error
		accs, aErr = r.api.ReportACCByTime(ctx, sess, []string{deviceID}, from, to, 0)
		return aErr
	})
	if err != nil {
		return nil, err
	}
	if len(accs) > 0 {
		return candidatesFromACC(deviceID, accs), nil
	}

	// Vendor has nothing for the window; fall back to segmenting the
	// locally buffered telemetry.
	samples, err := r.trips.SamplesInWindow(ctx, deviceID, from, to)
	if err != nil {
		return nil, err
	}
	return r.seg.Segment(samples), nil
}

func (r *Runner) candidatesFromRecords(ctx context.Context, deviceID string, records []vendor.TripRecord, from, to time.Time) []trip.TripCandidate {
	var windowSamples []trip.PositionSample
	samplesLoaded := false

	out := make([]trip.TripCandidate, 0, len(records))
	for _, rec := range records {
		c := trip.TripCandidate{
			DeviceID:    deviceID,
			StartTime:   rec.StartTime,
			EndTime:     rec.EndTime,
			StartLat:    rec.StartLat,
			StartLng:    rec.StartLng,
			EndLat:      rec.EndLat,
			EndLng:      rec.EndLng,
			DistanceKm:  rec.DistanceM / 1000,
			AvgSpeedKmh: rec.AvgSpeedKmh,
			MaxSpeedKmh: rec.MaxSpeedKmh,
		}

		// Vendor odometer distances are unreliable in historical data.
		// When the row reports none, rebuild from raw coordinates.
		if c.DistanceKm == 0 {
			if !samplesLoaded {
				samplesLoaded = true
				var err error
				windowSamples, err = r.trips.SamplesInWindow(ctx, deviceID, from, to)
				if err != nil {
					log.Printf("syncer: loading samples for %s: %v", deviceID, err)
				}
			}
			c.DistanceKm = rebuildDistance(c, windowSamples)
		}
		out = append(out, c)
	}
	return out
}

// rebuildDistance accumulates over the samples inside the candidate's
// interval, or falls back to the straight line between its endpoints.
func rebuildDistance(c trip.TripCandidate, samples []trip.PositionSample) float64 {
	var inWindow []trip.PositionSample
	for _, p := range samples {
		if p.RecordedAt.Before(c.StartTime) || p.RecordedAt.After(c.EndTime) {
			continue
		}
		inWindow = append(inWindow, p)
	}
	if len(inWindow) >= 2 {
		return trip.AccumulateKm(inWindow)
	}
	return geo.HaversineKm(c.StartLat, c.StartLng, c.EndLat, c.EndLng)
}

// candidatesFromACC turns ignition-on intervals into candidates. The
// vendor reports only endpoints here, so distance is the straight line
// and speed derives from distance over time.
func candidatesFromACC(deviceID string, accs []vendor.ACCRecord) []trip.TripCandidate {
	var out []trip.TripCandidate
	for _, a := range accs {
		if a.State != vendor.ACCStateOn {
			continue
		}
		c := trip.TripCandidate{
			DeviceID:   deviceID,
			StartTime:  a.BeginTime,
			EndTime:    a.EndTime,
			StartLat:   a.StartLat,
			StartLng:   a.StartLng,
			EndLat:     a.EndLat,
			EndLng:     a.EndLng,
			DistanceKm: geo.HaversineKm(a.StartLat, a.StartLng, a.EndLat, a.EndLng),
		}
		if hours := c.EndTime.Sub(c.StartTime).Hours(); hours > 0 {
			c.AvgSpeedKmh = c.DistanceKm / hours
		}
		out = append(out, c)
	}
	return out
}

// withRetry retries transient failures a bounded number of times with
// a fixed delay. A rate-limit error is final: retrying it inside the
// same run is exactly what the backoff exists to prevent, so it ends
// the poll immediately.
func (r *Runner) withRetry(fn func() error) error {
	var err error
	Poll(r.cfg.RetryAttempts, time.Duration(r.cfg.RetryDelaySec)*time.Second, r.Sleep, func() (bool, error) {
		err = fn()
		if err == nil || errors.Is(err, vendor.ErrRateLimited) {
			return true, nil
		}
		return false, err
	})
	return err
}

func (r *Runner) announce(t trip.Trip) {
	if r.pub != nil {
		if err := r.pub.PublishTrip(t); err != nil {
			log.Printf("syncer: publishing trip %s: %v", t.ID, err)
		}
	}
	if r.hub != nil {
		if payload, err := json.Marshal(t); err == nil {
			r.hub.Broadcast(t.DeviceID, payload)
		}
	}
}
