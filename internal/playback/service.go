package playback

import (
	"context"

	"github.com/enviofleett/mymoto-sub019/internal/trip"
)

// Playback is what the map player renders for one trip: the trip row,
// its segments and the reduced summary.
type Playback struct {
	Trip     trip.Trip      `json:"trip"`
	Segments []RouteSegment `json:"segments"`
	Summary  Summary        `json:"summary"`
}

type Service struct {
	trips    *trip.Service
	splitter Splitter
}

func NewService(trips *trip.Service, splitter Splitter) *Service {
	return &Service{trips: trips, splitter: splitter}
}

// ForTrip recomputes the playback view for a stored trip. Segments are
// always derived fresh from the buffered samples.
func (s *Service) ForTrip(ctx context.Context, tripID string) (Playback, error) {
	t, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return Playback{}, err
	}

	samples, err := s.trips.SamplesInWindow(ctx, t.DeviceID, t.StartTime, t.EndTime)
	if err != nil {
		return Playback{}, err
	}

	segments := s.splitter.Split(samples)
	return Playback{
		Trip:     t,
		Segments: segments,
		Summary:  Summarize(segments),
	}, nil
}
