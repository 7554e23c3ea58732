package ingest

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"fleettrack/internal/models"
	"fleettrack/internal/observability"
	"fleettrack/internal/queue"
	"fleettrack/internal/store"
)

// ErrUnresolvedVehicle marks a job whose device has no vehicle mapping yet.
// Such jobs are dropped, not retried: until a discovery scan links the device
// the record can never become resolvable, and the next telemetry point after
// linking will succeed on its own.
var ErrUnresolvedVehicle = errors.New("no vehicle mapping for device")

// LinkResolver maps a provider device identifier to its linked vehicle.
type LinkResolver interface {
	FindByDevice(ctx context.Context, deviceID string, provider models.Provider) (*models.VehicleProviderLink, error)
}

// SessionStore reads the open session for a vehicle and rolls its odometer.
type SessionStore interface {
	FindOpen(ctx context.Context, vehicleID string) (*models.SessionRef, error)
	UpdateOdometer(ctx context.Context, sessionID string, totalDistanceKm float64) error
}

// LocationStore persists canonical locations. Insert must be idempotent on
// (vehicle, timestamp).
type LocationStore interface {
	Insert(ctx context.Context, vehicleID string, sessionID *string, loc models.CanonicalLocation) (bool, error)
}

const vehicleLockStripes = 64

// Worker consumes ingest jobs: resolve the vehicle, attach the open session,
// persist the point. Writes for one vehicle are serialized through a striped
// lock keyed by vehicle id so telemetry appends stay chronological while
// distinct vehicles proceed in parallel.
type Worker struct {
	links     LinkResolver
	sessions  SessionStore
	locations LocationStore
	log       *slog.Logger
	locks     [vehicleLockStripes]sync.Mutex
}

func NewWorker(links LinkResolver, sessions SessionStore, locations LocationStore, log *slog.Logger) *Worker {
	return &Worker{links: links, sessions: sessions, locations: locations, log: log}
}

// Handle processes one job from the queue.
func (w *Worker) Handle(ctx context.Context, job models.IngestJob) queue.HandleResult {
	start := time.Now()
	err := w.persist(ctx, job.Location)
	switch {
	case errors.Is(err, ErrUnresolvedVehicle):
		observability.JobsUnresolved.Inc()
		w.log.Warn("dropping location for unknown device",
			"device_id", job.Location.DeviceID, "provider", job.Location.Provider, "plate", job.Location.Plate)
		return queue.Done
	case err != nil:
		w.log.Error("failed to persist location", "job_id", job.ID, "device_id", job.Location.DeviceID, "error", err)
		return queue.Retry
	}
	observability.ObservePersistLatency(start)
	observability.JobsPersisted.Inc()
	return queue.Done
}

func (w *Worker) persist(ctx context.Context, loc models.CanonicalLocation) error {
	link, err := w.links.FindByDevice(ctx, loc.DeviceID, loc.Provider)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnresolvedVehicle
	}
	if err != nil {
		return err
	}

	lock := w.vehicleLock(link.VehicleID)
	lock.Lock()
	defer lock.Unlock()

	var sessionID *string
	session, err := w.sessions.FindOpen(ctx, link.VehicleID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if session != nil {
		sessionID = &session.ID
	}

	inserted, err := w.locations.Insert(ctx, link.VehicleID, sessionID, loc)
	if err != nil {
		return err
	}
	if !inserted {
		// Redelivered or duplicate record; already persisted.
		return nil
	}

	if session != nil && loc.TotalDistanceKm != nil {
		if err := w.sessions.UpdateOdometer(ctx, session.ID, *loc.TotalDistanceKm); err != nil {
			// The point itself is saved; a missed rollup self-corrects on the
			// next reading.
			w.log.Warn("failed to update session odometer", "session_id", session.ID, "error", err)
		}
	}
	return nil
}

func (w *Worker) vehicleLock(vehicleID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(vehicleID))
	return &w.locks[h.Sum32()%vehicleLockStripes]
}
