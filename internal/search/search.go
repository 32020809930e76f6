package search

import (
	"context"
	"strings"
	"time"

	"github.com/enviofleett/mymoto-sub019/internal/trip"
)

// VendorTripRow is a loosely shaped trip row as other systems hand it
// over: metric distances, flat fields.
type VendorTripRow struct {
	DeviceID        string    `json:"device_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	EndLat          float64   `json:"end_lat"`
	EndLng          float64   `json:"end_lng"`
	DistanceMeters  float64   `json:"distance_meters"`
	DurationSeconds int64     `json:"duration_seconds"`
	AvgSpeedKmh     float64   `json:"avg_speed_kmh"`
	MaxSpeedKmh     float64   `json:"max_speed_kmh"`
}

// SearchTrip is the normalized shape the chat/search surface works
// with: kilometers, resolved end address.
type SearchTrip struct {
	DeviceID    string    `json:"device_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	EndLat      float64   `json:"end_lat"`
	EndLng      float64   `json:"end_lng"`
	DistanceKm  float64   `json:"distance_km"`
	DurationSec int64     `json:"duration_seconds"`
	AvgSpeedKmh float64   `json:"avg_speed_kmh"`
	MaxSpeedKmh float64   `json:"max_speed_kmh"`
	EndAddress  string    `json:"end_address,omitempty"`
}

// MapVendorTrip normalizes a vendor row: meters become kilometers,
// durations and speeds pass through untouched.
func MapVendorTrip(row VendorTripRow) SearchTrip {
	return SearchTrip{
		DeviceID:    row.DeviceID,
		StartTime:   row.StartTime,
		EndTime:     row.EndTime,
		EndLat:      row.EndLat,
		EndLng:      row.EndLng,
		DistanceKm:  row.DistanceMeters / 1000,
		DurationSec: row.DurationSeconds,
		AvgSpeedKmh: row.AvgSpeedKmh,
		MaxSpeedKmh: row.MaxSpeedKmh,
	}
}

// FromStoredTrip adapts an engine-owned trip to the search shape.
func FromStoredTrip(t trip.Trip) SearchTrip {
	return SearchTrip{
		DeviceID:    t.DeviceID,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		EndLat:      t.EndLat,
		EndLng:      t.EndLng,
		DistanceKm:  t.DistanceKm,
		DurationSec: t.DurationSec,
		AvgSpeedKmh: t.AvgSpeedKmh,
		MaxSpeedKmh: t.MaxSpeedKmh,
	}
}

// GhostCheck reports whether a trip is noise. IsGhostByThresholds
// applies the same minima the ingestion filter uses.
type GhostCheck func(SearchTrip) bool

func IsGhostByThresholds(f trip.GhostFilter) GhostCheck {
	return func(t SearchTrip) bool {
		return !f.Accept(trip.TripCandidate{
			DeviceID:   t.DeviceID,
			StartTime:  t.StartTime,
			EndTime:    t.EndTime,
			DistanceKm: t.DistanceKm,
		})
	}
}

// FilterByLocation keeps trips whose resolved end address contains the
// query, case-insensitively. Ghost trips are dropped regardless of
// text match, and a failed address resolution degrades to a
// placeholder so one bad trip cannot abort the whole search.
func FilterByLocation(ctx context.Context, trips []SearchTrip, query string, resolver AddressResolver, isGhost GhostCheck) []SearchTrip {
	needle := strings.ToLower(strings.TrimSpace(query))

	var matches []SearchTrip
	for _, t := range trips {
		if isGhost != nil && isGhost(t) {
			continue
		}

		name := UnknownPlace
		if resolver != nil {
			if resolved, err := resolver.Resolve(ctx, t.EndLat, t.EndLng); err == nil && resolved != "" {
				name = resolved
			}
		}

		if needle != "" && !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		t.EndAddress = name
		matches = append(matches, t)
	}
	return matches
}
