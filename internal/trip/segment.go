package trip

import (
	"sort"
	"time"
)

const DefaultGapThreshold = 3 * time.Minute

// Segmenter turns an ordered per-device sample stream into trip
// candidates using ignition state and gap-duration rules. Ignition
// flicker shorter than GapThreshold never splits a trip; only a
// sustained OFF period or device silence longer than the threshold
// ends one.
type Segmenter struct {
	GapThreshold time.Duration
}

func NewSegmenter(gapThreshold time.Duration) Segmenter {
	if gapThreshold <= 0 {
		gapThreshold = DefaultGapThreshold
	}
	return Segmenter{GapThreshold: gapThreshold}
}

// Segment consumes one device's samples for a sync window and emits
// the closed driving intervals. Input order does not matter; samples
// are stabilized by a timestamp sort first. Windows with fewer than
// two samples produce nothing.
func (s Segmenter) Segment(samples []PositionSample) []TripCandidate {
	if len(samples) < 2 {
		return nil
	}

	sorted := make([]PositionSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
	})

	gap := s.GapThreshold
	if gap <= 0 {
		gap = DefaultGapThreshold
	}

	var (
		out        []TripCandidate
		current    []PositionSample
		lastActive int // index into current of the last driving-qualified sample
	)

	closeTrip := func(upTo int) {
		if c, ok := buildCandidate(current[:upTo+1]); ok {
			out = append(out, c)
		}
		current = nil
	}

	for _, smp := range sorted {
		active := isDriving(smp)

		if current == nil {
			if active {
				current = []PositionSample{smp}
				lastActive = 0
			}
			continue
		}

		prev := current[len(current)-1]
		if smp.RecordedAt.Sub(prev.RecordedAt) > gap {
			// Device went silent longer than the threshold: the trip
			// ended at the last sample before the gap.
			closeTrip(len(current) - 1)
			if active {
				current = []PositionSample{smp}
				lastActive = 0
			}
			continue
		}

		current = append(current, smp)
		if active {
			lastActive = len(current) - 1
			continue
		}

		if smp.RecordedAt.Sub(current[lastActive].RecordedAt) > gap {
			// Sustained ignition-off. Close at the last driving sample;
			// the trailing idle samples belong to no trip.
			closeTrip(lastActive)
		}
	}

	if current != nil {
		// Still driving at end of window.
		closeTrip(len(current) - 1)
	}

	return out
}

// isDriving reports whether a sample counts as a driving signal. A
// sample with the ignition off but measurable speed still extends a
// trip, which covers devices that report ACC late.
func isDriving(s PositionSample) bool {
	return s.IgnitionOn || s.SpeedKmh > 0
}

func buildCandidate(interval []PositionSample) (TripCandidate, bool) {
	if len(interval) < 2 {
		return TripCandidate{}, false
	}

	first := interval[0]
	last := interval[len(interval)-1]

	c := TripCandidate{
		DeviceID:   first.DeviceID,
		StartTime:  first.RecordedAt,
		EndTime:    last.RecordedAt,
		StartLat:   first.Lat,
		StartLng:   first.Lng,
		EndLat:     last.Lat,
		EndLng:     last.Lng,
		DistanceKm: AccumulateKm(interval),
	}

	var speedSum float64
	var speedCount int
	for _, smp := range interval {
		if smp.SpeedKmh > c.MaxSpeedKmh {
			c.MaxSpeedKmh = smp.SpeedKmh
		}
		if smp.SpeedKmh > 0 {
			speedSum += smp.SpeedKmh
			speedCount++
		}
	}
	if speedCount > 0 {
		c.AvgSpeedKmh = speedSum / float64(speedCount)
	} else if hours := c.EndTime.Sub(c.StartTime).Hours(); hours > 0 {
		// Speed readings missing: derive from distance over time.
		c.AvgSpeedKmh = c.DistanceKm / hours
	}

	if !c.Valid() {
		return TripCandidate{}, false
	}
	return c, true
}
