package trip

import (
	"math"

	"github.com/enviofleett/mymoto-sub019/internal/shared/geo"
)

// AccumulateKm sums great-circle distances between consecutive samples.
// Fewer than two samples accumulate to 0. Odometer fields from the
// vendor are not trusted; this is the authoritative distance source.
func AccumulateKm(samples []PositionSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(samples); i++ {
		total += geo.HaversineKm(
			samples[i-1].Lat, samples[i-1].Lng,
			samples[i].Lat, samples[i].Lng,
		)
	}
	return total
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
