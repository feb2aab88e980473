package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bus-tracker/internal/notify/domain"
)

// normalizedVehicle must match util.NormalizeVehicleID and the users_vehicle_idx expression.
const normalizedVehicle = `UPPER(regexp_replace(vehicle_id, '\s', '', 'g'))`

type DirectoryRepo struct {
	db *pgxpool.Pool
}

func NewDirectoryRepo(db *pgxpool.Pool) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) FindByVehicle(ctx context.Context, vehicleID string, roles []string) ([]domain.Recipient, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, role, COALESCE(vehicle_id, ''), fcm_tokens
		FROM users
		WHERE `+normalizedVehicle+` = $1 AND role = ANY($2)
		ORDER BY id
	`, vehicleID, roles)
	if err != nil {
		return nil, fmt.Errorf("query users by vehicle failed: %w", err)
	}
	return collectRecipients(rows)
}

func (r *DirectoryRepo) FindByRole(ctx context.Context, role string) ([]domain.Recipient, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, role, COALESCE(vehicle_id, ''), fcm_tokens
		FROM users
		WHERE role = $1
		ORDER BY id
	`, role)
	if err != nil {
		return nil, fmt.Errorf("query users by role failed: %w", err)
	}
	return collectRecipients(rows)
}

func (r *DirectoryRepo) FindByUID(ctx context.Context, uid string) (*domain.Recipient, error) {
	var rec domain.Recipient
	err := r.db.QueryRow(ctx, `
		SELECT id, role, COALESCE(vehicle_id, ''), fcm_tokens
		FROM users
		WHERE id = $1
	`, uid).Scan(&rec.UID, &rec.Role, &rec.VehicleID, &rec.Tokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user failed: %w", err)
	}
	return &rec, nil
}

// RemoveTokens is a set difference inside one UPDATE, so concurrent removals
// for the same user cannot lose each other's writes.
func (r *DirectoryRepo) RemoveTokens(ctx context.Context, uid string, tokens []string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET fcm_tokens = ARRAY(
			SELECT t FROM unnest(fcm_tokens) WITH ORDINALITY AS u(t, n)
			WHERE t <> ALL($2::text[])
			ORDER BY n
		)
		WHERE id = $1
	`, uid, tokens)
	if err != nil {
		return fmt.Errorf("remove tokens failed: %w", err)
	}
	return nil
}

func collectRecipients(rows pgx.Rows) ([]domain.Recipient, error) {
	recipients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Recipient, error) {
		var rec domain.Recipient
		err := row.Scan(&rec.UID, &rec.Role, &rec.VehicleID, &rec.Tokens)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan users failed: %w", err)
	}
	return recipients, nil
}
