package playback

import (
	"time"

	"github.com/enviofleett/mymoto-sub019/internal/trip"
)

type SegmentKind string

const (
	KindMovement SegmentKind = "movement"
	KindIdle     SegmentKind = "idle"
)

const DefaultIdleGap = 60 * time.Second

// Samples slower than this count as standing still; GPS drift while
// parked reports fractional speeds.
const idleSpeedEpsilonKmh = 0.5

// RouteSegment is a sub-interval of one trip's samples. Segments are
// derived on demand and never persisted; indexes refer to the trip's
// ordered sample list.
type RouteSegment struct {
	Kind        SegmentKind `json:"kind"`
	StartIndex  int         `json:"start_index"`
	EndIndex    int         `json:"end_index"`
	DistanceKm  float64     `json:"distance_km"`
	AvgSpeedKmh float64     `json:"avg_speed_kmh"`
	MaxSpeedKmh float64     `json:"max_speed_kmh"`
	DurationSec int64       `json:"duration_seconds"`
}

type Summary struct {
	TotalDistanceKm float64 `json:"total_distance_km"`
	LongestIdleMin  float64 `json:"longest_idle_minutes"`
	StopCount       int     `json:"stop_count"`
}

// Splitter subdivides a trip's ordered samples into alternating
// movement and idle segments that exactly tile the input.
type Splitter struct {
	IdleGap time.Duration
}

func NewSplitter(idleGap time.Duration) Splitter {
	if idleGap <= 0 {
		idleGap = DefaultIdleGap
	}
	return Splitter{IdleGap: idleGap}
}

// Split partitions the samples. The first segment starts at index 0,
// the last ends at the final index, and adjacent same-kind samples
// merge. Empty input yields no segments; Summarize still reports a
// single stop so a parked vehicle renders as "stopped the whole time".
func (s Splitter) Split(samples []trip.PositionSample) []RouteSegment {
	n := len(samples)
	if n == 0 {
		return nil
	}

	kinds := make([]SegmentKind, n)
	for i := range samples {
		kinds[i] = KindMovement
		if samples[i].SpeedKmh > idleSpeedEpsilonKmh {
			continue
		}
		if i == n-1 {
			kinds[i] = KindIdle
			continue
		}
		if samples[i+1].RecordedAt.Sub(samples[i].RecordedAt) >= s.IdleGap {
			kinds[i] = KindIdle
		}
	}

	var segments []RouteSegment
	start := 0
	for i := 1; i <= n; i++ {
		if i < n && kinds[i] == kinds[start] {
			continue
		}
		segments = append(segments, s.buildSegment(samples, kinds[start], start, i-1))
		start = i
	}
	return segments
}

func (s Splitter) buildSegment(samples []trip.PositionSample, kind SegmentKind, start, end int) RouteSegment {
	seg := RouteSegment{
		Kind:       kind,
		StartIndex: start,
		EndIndex:   end,
		DistanceKm: trip.AccumulateKm(samples[start : end+1]),
	}

	// A segment lasts until the first sample of the next one.
	until := end
	if end+1 < len(samples) {
		until = end + 1
	}
	duration := samples[until].RecordedAt.Sub(samples[start].RecordedAt)
	seg.DurationSec = int64(duration.Seconds())

	for _, p := range samples[start : end+1] {
		if p.SpeedKmh > seg.MaxSpeedKmh {
			seg.MaxSpeedKmh = p.SpeedKmh
		}
	}
	if hours := duration.Hours(); hours > 0 {
		seg.AvgSpeedKmh = seg.DistanceKm / hours
	}
	return seg
}

// Summarize reduces the segments into the trip-level playback summary.
func Summarize(segments []RouteSegment) Summary {
	var sum Summary
	for _, seg := range segments {
		sum.TotalDistanceKm += seg.DistanceKm
		if seg.Kind != KindIdle {
			continue
		}
		sum.StopCount++
		if idleMin := float64(seg.DurationSec) / 60; idleMin > sum.LongestIdleMin {
			sum.LongestIdleMin = idleMin
		}
	}
	if sum.StopCount == 0 {
		sum.StopCount = 1
	}
	return sum
}
