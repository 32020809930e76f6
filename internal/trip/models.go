package trip

import "time"

// PositionSample is one raw telemetry reading from a tracked device.
// Samples may arrive duplicated or out of order; the segmenter sorts
// before processing.
type PositionSample struct {
	DeviceID   string    `json:"device_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	SpeedKmh   float64   `json:"speed_kmh"`
	IgnitionOn bool      `json:"ignition_on"`
	Heading    float64   `json:"heading,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TripCandidate is a provisional continuous driving interval emitted by
// the segmenter. It becomes a persisted Trip once it survives the
// integrity check and the ghost filter.
type TripCandidate struct {
	DeviceID    string    `json:"device_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	StartLat    float64   `json:"start_lat"`
	StartLng    float64   `json:"start_lng"`
	EndLat      float64   `json:"end_lat"`
	EndLng      float64   `json:"end_lng"`
	DistanceKm  float64   `json:"distance_km"`
	AvgSpeedKmh float64   `json:"avg_speed_kmh"`
	MaxSpeedKmh float64   `json:"max_speed_kmh"`
}

func (c TripCandidate) DurationSeconds() int64 {
	return int64(c.EndTime.Sub(c.StartTime).Seconds())
}

// Valid reports whether the candidate is structurally sound enough to
// store: positive duration and finite coordinates. Candidates failing
// this never reach the ghost filter.
func (c TripCandidate) Valid() bool {
	if !c.EndTime.After(c.StartTime) {
		return false
	}
	for _, v := range []float64{c.StartLat, c.StartLng, c.EndLat, c.EndLng} {
		if !finite(v) {
			return false
		}
	}
	return c.DistanceKm >= 0
}

type Trip struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	StartLat    float64   `json:"start_lat"`
	StartLng    float64   `json:"start_lng"`
	EndLat      float64   `json:"end_lat"`
	EndLng      float64   `json:"end_lng"`
	DistanceKm  float64   `json:"distance_km"`
	AvgSpeedKmh float64   `json:"avg_speed_kmh"`
	MaxSpeedKmh float64   `json:"max_speed_kmh"`
	DurationSec int64     `json:"duration_seconds"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromCandidate lifts an accepted candidate into a storable Trip.
func FromCandidate(c TripCandidate) Trip {
	return Trip{
		DeviceID:    c.DeviceID,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		StartLat:    c.StartLat,
		StartLng:    c.StartLng,
		EndLat:      c.EndLat,
		EndLng:      c.EndLng,
		DistanceKm:  c.DistanceKm,
		AvgSpeedKmh: c.AvgSpeedKmh,
		MaxSpeedKmh: c.MaxSpeedKmh,
		DurationSec: c.DurationSeconds(),
	}
}
