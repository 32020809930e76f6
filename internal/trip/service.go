package trip

import (
	"context"
	"time"

	"github.com/enviofleett/mymoto-sub019/internal/db"

	"github.com/google/uuid"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// UpsertTrip stores a trip keyed by (device_id, start_time) so that
// re-ingesting the same sync window never duplicates rows.
func (s *Service) UpsertTrip(ctx context.Context, input Trip) (Trip, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, device_id, start_time, end_time, start_lat, start_lng, end_lat, end_lng,
			distance_km, avg_speed_kmh, max_speed_kmh, duration_seconds)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (device_id, start_time) DO UPDATE
		SET end_time=EXCLUDED.end_time,
		    start_lat=EXCLUDED.start_lat, start_lng=EXCLUDED.start_lng,
		    end_lat=EXCLUDED.end_lat, end_lng=EXCLUDED.end_lng,
		    distance_km=EXCLUDED.distance_km,
		    avg_speed_kmh=EXCLUDED.avg_speed_kmh,
		    max_speed_kmh=EXCLUDED.max_speed_kmh,
		    duration_seconds=EXCLUDED.duration_seconds
		RETURNING id, created_at
	`, input.ID, input.DeviceID, input.StartTime, input.EndTime,
		input.StartLat, input.StartLng, input.EndLat, input.EndLng,
		input.DistanceKm, input.AvgSpeedKmh, input.MaxSpeedKmh, input.DurationSec)
	if err := row.Scan(&input.ID, &input.CreatedAt); err != nil {
		return Trip{}, err
	}
	return input, nil
}

func (s *Service) GetTrip(ctx context.Context, id string) (Trip, error) {
	var t Trip
	row := s.db.QueryRow(ctx, `
		SELECT id, device_id, start_time, end_time, start_lat, start_lng, end_lat, end_lng,
			COALESCE(distance_km,0), COALESCE(avg_speed_kmh,0), COALESCE(max_speed_kmh,0),
			duration_seconds, created_at
		FROM trips WHERE id=$1
	`, id)
	if err := row.Scan(&t.ID, &t.DeviceID, &t.StartTime, &t.EndTime,
		&t.StartLat, &t.StartLng, &t.EndLat, &t.EndLng,
		&t.DistanceKm, &t.AvgSpeedKmh, &t.MaxSpeedKmh, &t.DurationSec, &t.CreatedAt); err != nil {
		return Trip{}, err
	}
	return t, nil
}

func (s *Service) Trips(ctx context.Context, deviceID string, from, to time.Time) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, device_id, start_time, end_time, start_lat, start_lng, end_lat, end_lng,
			COALESCE(distance_km,0), COALESCE(avg_speed_kmh,0), COALESCE(max_speed_kmh,0),
			duration_seconds, created_at
		FROM trips
		WHERE device_id=$1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`, deviceID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var t Trip
		if err := rows.Scan(&t.ID, &t.DeviceID, &t.StartTime, &t.EndTime,
			&t.StartLat, &t.StartLng, &t.EndLat, &t.EndLng,
			&t.DistanceKm, &t.AvgSpeedKmh, &t.MaxSpeedKmh, &t.DurationSec, &t.CreatedAt); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// SamplesInWindow returns the device's buffered telemetry ordered by
// timestamp, ready for the segmenter or the playback splitter.
func (s *Service) SamplesInWindow(ctx context.Context, deviceID string, from, to time.Time) ([]PositionSample, error) {
	rows, err := s.db.Query(ctx, `
		SELECT device_id, lat, lng, COALESCE(speed_kmh,0), ignition_on, COALESCE(heading,0), recorded_at
		FROM position_samples
		WHERE device_id=$1 AND recorded_at >= $2 AND recorded_at <= $3
		ORDER BY recorded_at
	`, deviceID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []PositionSample
	for rows.Next() {
		var p PositionSample
		if err := rows.Scan(&p.DeviceID, &p.Lat, &p.Lng, &p.SpeedKmh, &p.IgnitionOn, &p.Heading, &p.RecordedAt); err != nil {
			return nil, err
		}
		samples = append(samples, p)
	}
	return samples, rows.Err()
}

// InsertSamples buffers raw telemetry. Duplicate (device_id, recorded_at)
// pairs are dropped, so replays are harmless.
func (s *Service) InsertSamples(ctx context.Context, samples []PositionSample) error {
	for _, p := range samples {
		_, err := s.db.Exec(ctx, `
			INSERT INTO position_samples (device_id, lat, lng, speed_kmh, ignition_on, heading, recorded_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (device_id, recorded_at) DO NOTHING
		`, p.DeviceID, p.Lat, p.Lng, p.SpeedKmh, p.IgnitionOn, p.Heading, p.RecordedAt)
		if err != nil {
			return err
		}
	}
	return nil
}
