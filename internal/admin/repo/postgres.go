package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepo struct {
	db *pgxpool.Pool
}

func NewAdminRepo(db *pgxpool.Pool) *AdminRepo {
	return &AdminRepo{db: db}
}

type SessionMetrics struct {
	SessionsToday          int     `json:"sessions_today"`
	IdleStoppedToday       int     `json:"idle_stopped_today"`
	AverageDurationMinutes float64 `json:"average_duration_minutes"`
}

type SessionRow struct {
	SessionID   string     `json:"session_id"`
	VehicleID   string     `json:"vehicle_id"`
	DriverLabel string     `json:"driver_label"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	EndReason   *string    `json:"end_reason"`
}

// GetSessionMetrics summarizes sessions started since the given time.
func (r *AdminRepo) GetSessionMetrics(ctx context.Context, since time.Time) (*SessionMetrics, error) {
	metrics := &SessionMetrics{}

	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE end_reason = 'idle_timeout'),
			COALESCE(AVG(EXTRACT(EPOCH FROM (ended_at - started_at)) / 60)
				FILTER (WHERE ended_at IS NOT NULL), 0)
		FROM tracking_sessions
		WHERE started_at >= $1
	`, since).Scan(&metrics.SessionsToday, &metrics.IdleStoppedToday, &metrics.AverageDurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("query session metrics failed: %w", err)
	}

	return metrics, nil
}

// GetRecentSessions lists a vehicle's sessions, newest first.
func (r *AdminRepo) GetRecentSessions(ctx context.Context, vehicleID string, limit int) ([]SessionRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, vehicle_id, driver_label, started_at, ended_at, end_reason
		FROM tracking_sessions
		WHERE vehicle_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions failed: %w", err)
	}

	sessions, err := pgx.CollectRows(rows, pgx.RowToStructByPos[SessionRow])
	if err != nil {
		return nil, fmt.Errorf("scan sessions failed: %w", err)
	}
	return sessions, nil
}
