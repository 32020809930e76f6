package trip

import "time"

// GhostFilter drops trip candidates manufactured by GPS jitter while
// parked. A candidate is a ghost only when it is short in both time and
// space; clearing either minimum is enough to pass.
type GhostFilter struct {
	MinDuration   time.Duration
	MinDistanceKm float64
}

func NewGhostFilter(minDuration time.Duration, minDistanceKm float64) GhostFilter {
	return GhostFilter{MinDuration: minDuration, MinDistanceKm: minDistanceKm}
}

func (f GhostFilter) Accept(c TripCandidate) bool {
	if c.DurationSeconds() >= int64(f.MinDuration.Seconds()) {
		return true
	}
	return c.DistanceKm >= f.MinDistanceKm
}
