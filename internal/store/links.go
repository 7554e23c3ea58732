package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fleettrack/internal/models"
)

type LinkRepo struct {
	db *DB
}

func NewLinkRepo(db *DB) *LinkRepo {
	return &LinkRepo{db: db}
}

// Find returns the existing link for (vehicle, provider), or ErrNotFound.
func (r *LinkRepo) Find(ctx context.Context, vehicleID string, provider models.Provider) (*models.VehicleProviderLink, error) {
	query := `
		SELECT vehicle_id, provider_device_id, provider, created_at
		FROM vehicle_provider_links
		WHERE vehicle_id = $1 AND provider = $2;
	`

	var l models.VehicleProviderLink
	err := r.db.Pool.QueryRow(ctx, query, vehicleID, provider).
		Scan(&l.VehicleID, &l.ProviderDeviceID, &l.Provider, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find link: %w", err)
	}
	return &l, nil
}

// FindByDevice resolves a provider device identifier to its linked vehicle.
func (r *LinkRepo) FindByDevice(ctx context.Context, deviceID string, provider models.Provider) (*models.VehicleProviderLink, error) {
	query := `
		SELECT vehicle_id, provider_device_id, provider, created_at
		FROM vehicle_provider_links
		WHERE provider_device_id = $1 AND provider = $2;
	`

	var l models.VehicleProviderLink
	err := r.db.Pool.QueryRow(ctx, query, deviceID, provider).
		Scan(&l.VehicleID, &l.ProviderDeviceID, &l.Provider, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find link by device: %w", err)
	}
	return &l, nil
}

// Create inserts the link. The unique constraint on (vehicle_id, provider)
// is the race guard for overlapping discovery scans: a concurrent insert for
// the same pair collapses to a no-op and Create reports created=false.
func (r *LinkRepo) Create(ctx context.Context, vehicleID, deviceID string, provider models.Provider) (bool, error) {
	query := `
		INSERT INTO vehicle_provider_links (vehicle_id, provider_device_id, provider)
		VALUES ($1, $2, $3)
		ON CONFLICT (vehicle_id, provider) DO NOTHING;
	`

	tag, err := r.db.Pool.Exec(ctx, query, vehicleID, deviceID, provider)
	if err != nil {
		return false, fmt.Errorf("create link: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
