package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fleettrack/internal/models"
)

type VehicleRepo struct {
	db *DB
}

func NewVehicleRepo(db *DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

// FindByPlate looks up a known vehicle by its license plate. ErrNotFound means
// the plate is not yet onboarded, which discovery treats as a skip, not an
// error.
func (r *VehicleRepo) FindByPlate(ctx context.Context, plate string) (*models.VehicleRef, error) {
	query := `
		SELECT id, license_plate
		FROM vehicles
		WHERE license_plate = $1;
	`

	var v models.VehicleRef
	err := r.db.Pool.QueryRow(ctx, query, plate).Scan(&v.ID, &v.Plate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find vehicle by plate: %w", err)
	}
	return &v, nil
}
