package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fleettrack/internal/models"
)

type LocationRepo struct {
	db *DB
}

func NewLocationRepo(db *DB) *LocationRepo {
	return &LocationRepo{db: db}
}

// Insert persists one canonical location for a vehicle. The unique constraint
// on (vehicle_id, recorded_at) makes redelivery of the same logical record a
// no-op; Insert reports whether a row was actually written.
func (r *LocationRepo) Insert(ctx context.Context, vehicleID string, sessionID *string, loc models.CanonicalLocation) (bool, error) {
	query := `
		INSERT INTO location_history
			(vehicle_id, session_id, provider, provider_device_id, latitude, longitude,
			 recorded_at, speed_kmh, total_distance_km, status, external_ref)
		VALUES ($1, $2, $3, $4, $5, $6, to_timestamp($7), $8, $9, $10, $11)
		ON CONFLICT (vehicle_id, recorded_at) DO NOTHING;
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		vehicleID,
		sessionID,
		loc.Provider,
		loc.DeviceID,
		loc.Position.Lat,
		loc.Position.Lng,
		loc.Position.Timestamp,
		loc.SpeedKmh,
		loc.TotalDistanceKm,
		loc.Status,
		loc.ExternalRef,
	)
	if err != nil {
		return false, fmt.Errorf("insert location: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type SessionRepo struct {
	db *DB
}

func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// FindOpen returns the vehicle's currently open session, or ErrNotFound when
// the vehicle is not on a trip. Sessions are opened and closed elsewhere.
func (r *SessionRepo) FindOpen(ctx context.Context, vehicleID string) (*models.SessionRef, error) {
	query := `
		SELECT id, vehicle_id, started_at, COALESCE(distance_km, 0)
		FROM vehicle_sessions
		WHERE vehicle_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1;
	`

	var s models.SessionRef
	err := r.db.Pool.QueryRow(ctx, query, vehicleID).
		Scan(&s.ID, &s.VehicleID, &s.StartedAt, &s.DistanceKm)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return &s, nil
}

// UpdateOdometer rolls the session's odometer-derived fields forward from the
// provider's cumulative reading. The first reading seen becomes the session's
// start; distance_km is derived from the difference. Monotonic: a stale
// reading never moves the rollup backwards.
func (r *SessionRepo) UpdateOdometer(ctx context.Context, sessionID string, totalDistanceKm float64) error {
	query := `
		UPDATE vehicle_sessions
		SET start_odometer_km = COALESCE(start_odometer_km, $2),
		    last_odometer_km  = GREATEST(COALESCE(last_odometer_km, 0), $2),
		    distance_km       = GREATEST(COALESCE(last_odometer_km, 0), $2) - COALESCE(start_odometer_km, $2),
		    updated_at        = $3
		WHERE id = $1;
	`

	_, err := r.db.Pool.Exec(ctx, query, sessionID, totalDistanceKm, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update session odometer: %w", err)
	}
	return nil
}
