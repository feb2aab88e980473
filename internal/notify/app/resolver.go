package app

import (
	"context"
	"fmt"
	"strings"

	"bus-tracker/internal/notify/domain"
	"bus-tracker/internal/shared/middleware"
	"bus-tracker/internal/shared/util"
)

// VehicleAudience are the roles notified about a vehicle they are assigned to.
var VehicleAudience = []string{middleware.RoleStudent, middleware.RoleCoadmin, middleware.RoleIncharge}

// Resolver turns a vehicle or a role into recipients with usable tokens.
// Every call reads the directory; nothing is cached between calls.
type Resolver struct {
	dir domain.Directory
}

func NewResolver(dir domain.Directory) *Resolver {
	return &Resolver{dir: dir}
}

func (r *Resolver) ResolveByVehicle(ctx context.Context, vehicleID string) ([]domain.Recipient, error) {
	vehicleID = util.NormalizeVehicleID(vehicleID)
	if vehicleID == "" {
		return nil, domain.ErrMissingVehicleID
	}

	found, err := r.dir.FindByVehicle(ctx, vehicleID, VehicleAudience)
	if err != nil {
		return nil, fmt.Errorf("%w: vehicle %s: %w", domain.ErrDirectoryLookup, vehicleID, err)
	}

	out := make([]domain.Recipient, 0, len(found))
	for _, rec := range found {
		if !inAudience(rec.Role) || util.NormalizeVehicleID(rec.VehicleID) != vehicleID {
			continue
		}
		rec.Tokens = cleanTokens(rec.Tokens)
		out = append(out, rec)
	}
	return out, nil
}

func (r *Resolver) ResolveByRole(ctx context.Context, role string) ([]domain.Recipient, error) {
	role = strings.ToLower(strings.TrimSpace(role))

	found, err := r.dir.FindByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("%w: role %s: %w", domain.ErrDirectoryLookup, role, err)
	}

	out := make([]domain.Recipient, 0, len(found))
	for _, rec := range found {
		if !strings.EqualFold(rec.Role, role) {
			continue
		}
		rec.Tokens = cleanTokens(rec.Tokens)
		out = append(out, rec)
	}
	return out, nil
}

// ResolveUser returns nil when the uid is unknown.
func (r *Resolver) ResolveUser(ctx context.Context, uid string) (*domain.Recipient, error) {
	rec, err := r.dir.FindByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s: %w", domain.ErrDirectoryLookup, uid, err)
	}
	if rec == nil {
		return nil, nil
	}
	rec.Tokens = cleanTokens(rec.Tokens)
	return rec, nil
}

func inAudience(role string) bool {
	for _, r := range VehicleAudience {
		if strings.EqualFold(role, r) {
			return true
		}
	}
	return false
}

// cleanTokens drops blank and repeated tokens, keeping the first occurrence.
func cleanTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
