package playback

import (
	"testing"
	"time"

	"github.com/enviofleett/mymoto-sub019/internal/trip"
)

var base = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func sample(offset time.Duration, lat, lng, speed float64) trip.PositionSample {
	return trip.PositionSample{
		DeviceID:   "dev-1",
		Lat:        lat,
		Lng:        lng,
		SpeedKmh:   speed,
		IgnitionOn: speed > 0,
		RecordedAt: base.Add(offset),
	}
}

func assertTiling(t *testing.T, segments []RouteSegment, sampleCount int) {
	t.Helper()
	covered := 0
	next := 0
	for _, seg := range segments {
		if seg.StartIndex != next {
			t.Fatalf("segment starts at %d, expected %d", seg.StartIndex, next)
		}
		if seg.EndIndex < seg.StartIndex {
			t.Fatalf("segment end %d before start %d", seg.EndIndex, seg.StartIndex)
		}
		covered += seg.EndIndex - seg.StartIndex + 1
		next = seg.EndIndex + 1
	}
	if covered != sampleCount {
		t.Fatalf("segments cover %d samples, want %d", covered, sampleCount)
	}
}

func TestSplitExactPartition(t *testing.T) {
	s := NewSplitter(60 * time.Second)
	samples := []trip.PositionSample{
		sample(0, 6.000, 3.000, 20),
		sample(1*time.Minute, 6.005, 3.005, 25),
		sample(2*time.Minute, 6.006, 3.006, 0),
		sample(4*time.Minute, 6.006, 3.006, 0),
		sample(5*time.Minute, 6.010, 3.010, 30),
		sample(6*time.Minute, 6.015, 3.015, 35),
	}

	segments := s.Split(samples)
	assertTiling(t, segments, len(samples))

	kinds := map[SegmentKind]bool{}
	for _, seg := range segments {
		kinds[seg.Kind] = true
	}
	if !kinds[KindIdle] || !kinds[KindMovement] {
		t.Fatalf("expected both idle and movement segments, got %+v", segments)
	}
}

func TestSplitMarksMidTripIdleRun(t *testing.T) {
	// 10:00, 10:02 driving; 10:03:30 at zero speed; 10:06 driving again.
	// Playback must show an idle pause of at least 1.4 minutes.
	s := NewSplitter(60 * time.Second)
	samples := []trip.PositionSample{
		sample(0, 6.000, 3.000, 20),
		sample(2*time.Minute, 6.001, 3.001, 18),
		sample(3*time.Minute+30*time.Second, 6.001, 3.001, 0),
		sample(6*time.Minute, 6.002, 3.002, 22),
	}

	segments := s.Split(samples)
	assertTiling(t, segments, len(samples))

	var longestIdleMin float64
	for _, seg := range segments {
		if seg.Kind == KindIdle && float64(seg.DurationSec)/60 > longestIdleMin {
			longestIdleMin = float64(seg.DurationSec) / 60
		}
	}
	if longestIdleMin < 1.4 {
		t.Fatalf("expected an idle segment of at least 1.4 minutes, got %v", longestIdleMin)
	}

	sum := Summarize(segments)
	if sum.TotalDistanceKm <= 0 {
		t.Fatalf("expected positive total distance")
	}
	if sum.StopCount < 1 {
		t.Fatalf("expected at least one stop")
	}
}

func TestSplitAllZeroSpeedTripReportsStopped(t *testing.T) {
	s := NewSplitter(60 * time.Second)
	samples := []trip.PositionSample{
		sample(0, 6.001, 3.001, 0),
		sample(2*time.Minute, 6.001, 3.001, 0),
		sample(4*time.Minute, 6.001, 3.001, 0),
	}

	segments := s.Split(samples)
	assertTiling(t, segments, len(samples))

	sum := Summarize(segments)
	if sum.StopCount < 1 {
		t.Fatalf("parked vehicle must report at least one stop")
	}
	if sum.TotalDistanceKm != 0 {
		t.Fatalf("expected zero distance, got %v", sum.TotalDistanceKm)
	}
	if sum.LongestIdleMin <= 0 {
		t.Fatalf("expected a positive idle duration")
	}
}

func TestSplitEmptyAndSingleInputs(t *testing.T) {
	s := NewSplitter(0)

	if segments := s.Split(nil); segments != nil {
		t.Fatalf("expected no segments for empty input")
	}
	if sum := Summarize(nil); sum.StopCount != 1 {
		t.Fatalf("empty playback must still summarize as one stop, got %d", sum.StopCount)
	}

	segments := s.Split([]trip.PositionSample{sample(0, 6.0, 3.0, 0)})
	assertTiling(t, segments, 1)
	if segments[0].Kind != KindIdle {
		t.Fatalf("single zero-speed sample should be idle")
	}
}

func TestSplitAvgSpeedGuardsDivideByZero(t *testing.T) {
	s := NewSplitter(60 * time.Second)
	// two samples with identical timestamps
	samples := []trip.PositionSample{
		sample(0, 6.000, 3.000, 10),
		sample(0, 6.001, 3.001, 12),
	}
	segments := s.Split(samples)
	assertTiling(t, segments, len(samples))
	for _, seg := range segments {
		if seg.AvgSpeedKmh < 0 {
			t.Fatalf("average speed must not be negative")
		}
	}
}
