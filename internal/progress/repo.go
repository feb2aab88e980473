package progress

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StopRepo struct {
	db *pgxpool.Pool
}

func NewStopRepo(db *pgxpool.Pool) *StopRepo {
	return &StopRepo{db: db}
}

func (r *StopRepo) ListStops(ctx context.Context, vehicleID string) ([]RouteStop, error) {
	rows, err := r.db.Query(ctx, `
		SELECT stop_id, name, latitude, longitude, COALESCE(scheduled_time, '')
		FROM route_stops
		WHERE vehicle_id = $1
		ORDER BY position
	`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("query route stops failed: %w", err)
	}

	stops, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RouteStop, error) {
		var s RouteStop
		err := row.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.ScheduledTime)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan route stops failed: %w", err)
	}
	return stops, nil
}

func (r *StopRepo) ReplaceStops(ctx context.Context, vehicleID string, stops []RouteStop) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM route_stops WHERE vehicle_id = $1`, vehicleID); err != nil {
		return fmt.Errorf("clear route stops failed: %w", err)
	}

	batch := &pgx.Batch{}
	for i, s := range stops {
		var scheduled *string
		if s.ScheduledTime != "" {
			scheduled = &s.ScheduledTime
		}
		batch.Queue(`
			INSERT INTO route_stops (vehicle_id, position, stop_id, name, latitude, longitude, scheduled_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, vehicleID, i, s.ID, s.Name, s.Latitude, s.Longitude, scheduled)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert route stops failed: %w", err)
	}

	return tx.Commit(ctx)
}
