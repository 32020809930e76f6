package search

import (
	"context"
	"time"

	"github.com/enviofleett/mymoto-sub019/internal/trip"
)

type Service struct {
	trips    *trip.Service
	resolver AddressResolver
	isGhost  GhostCheck
}

func NewService(trips *trip.Service, resolver AddressResolver, isGhost GhostCheck) *Service {
	return &Service{trips: trips, resolver: resolver, isGhost: isGhost}
}

// Search loads a device's stored trips for the window and keeps the
// ones ending somewhere matching the query.
func (s *Service) Search(ctx context.Context, deviceID, query string, from, to time.Time) ([]SearchTrip, error) {
	stored, err := s.trips.Trips(ctx, deviceID, from, to)
	if err != nil {
		return nil, err
	}

	rows := make([]SearchTrip, 0, len(stored))
	for _, t := range stored {
		rows = append(rows, FromStoredTrip(t))
	}
	return FilterByLocation(ctx, rows, query, s.resolver, s.isGhost), nil
}
