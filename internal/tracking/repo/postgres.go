package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bus-tracker/internal/tracking/domain"
)

type TrackingRepo struct {
	db *pgxpool.Pool
}

func NewTrackingRepo(db *pgxpool.Pool) *TrackingRepo {
	return &TrackingRepo{db: db}
}

// UpsertLocation overwrites the vehicle's single location row. A record
// without a sample clears the coordinates.
func (r *TrackingRepo) UpsertLocation(ctx context.Context, rec domain.LocationRecord) error {
	var lat, lng, speed, heading *float64
	var capturedAt *time.Time
	if rec.Sample != nil {
		lat, lng = &rec.Sample.Latitude, &rec.Sample.Longitude
		speed, heading = &rec.Sample.Speed, &rec.Sample.Heading
		capturedAt = &rec.Sample.CapturedAt
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO vehicle_locations (
			vehicle_id, latitude, longitude, speed, heading,
			is_tracking, tracking_session_id, driver_label, captured_at, last_update
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (vehicle_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			speed = EXCLUDED.speed,
			heading = EXCLUDED.heading,
			is_tracking = EXCLUDED.is_tracking,
			tracking_session_id = EXCLUDED.tracking_session_id,
			driver_label = EXCLUDED.driver_label,
			captured_at = EXCLUDED.captured_at,
			last_update = EXCLUDED.last_update
	`,
		rec.VehicleID, lat, lng, speed, heading,
		rec.IsActive, rec.SessionID, rec.DriverLabel, capturedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert vehicle location failed: %w", err)
	}
	return nil
}

func (r *TrackingRepo) GetLocation(ctx context.Context, vehicleID string) (*domain.LocationRecord, error) {
	var (
		rec                      domain.LocationRecord
		lat, lng, speed, heading *float64
		capturedAt               *time.Time
	)

	err := r.db.QueryRow(ctx, `
		SELECT vehicle_id, latitude, longitude, speed, heading,
		       is_tracking, tracking_session_id, driver_label, captured_at, last_update
		FROM vehicle_locations
		WHERE vehicle_id = $1
	`, vehicleID).Scan(
		&rec.VehicleID, &lat, &lng, &speed, &heading,
		&rec.IsActive, &rec.SessionID, &rec.DriverLabel, &capturedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle location failed: %w", err)
	}

	if lat != nil && lng != nil {
		sample := &domain.LocationSample{VehicleID: rec.VehicleID, Latitude: *lat, Longitude: *lng}
		if speed != nil {
			sample.Speed = *speed
		}
		if heading != nil {
			sample.Heading = *heading
		}
		if capturedAt != nil {
			sample.CapturedAt = *capturedAt
		}
		rec.Sample = sample
	}

	return &rec, nil
}

// ReleaseTracking closes every open session, since none survives a restart.
func (r *TrackingRepo) ReleaseTracking(ctx context.Context, reason string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin release tracking failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE tracking_sessions
		SET ended_at = NOW(), end_reason = $1
		WHERE ended_at IS NULL
	`, reason)
	if err != nil {
		return 0, fmt.Errorf("close orphaned sessions failed: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE vehicle_locations
		SET is_tracking = FALSE,
		    latitude = NULL, longitude = NULL, speed = NULL, heading = NULL,
		    captured_at = NULL, last_update = NOW()
		WHERE is_tracking
	`)
	if err != nil {
		return 0, fmt.Errorf("release vehicle locations failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit release tracking failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TrackingRepo) CreateSession(ctx context.Context, s domain.TrackingSession) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tracking_sessions (id, vehicle_id, driver_label, started_at)
		VALUES ($1, $2, $3, $4)
	`, s.SessionID, s.VehicleID, s.DriverLabel, s.StartedAt)
	if err != nil {
		return fmt.Errorf("insert tracking session failed: %w", err)
	}
	return nil
}

// EndSession only touches open sessions, so repeated calls are harmless.
func (r *TrackingRepo) EndSession(ctx context.Context, sessionID, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE tracking_sessions
		SET ended_at = NOW(), end_reason = $2
		WHERE id = $1 AND ended_at IS NULL
	`, sessionID, reason)
	if err != nil {
		return fmt.Errorf("end tracking session failed: %w", err)
	}
	return nil
}
