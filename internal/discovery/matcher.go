package discovery

import (
	"context"
	"errors"
	"log/slog"

	"fleettrack/internal/bus"
	"fleettrack/internal/models"
	"fleettrack/internal/observability"
	"fleettrack/internal/store"
)

// VehicleFinder is the slice of the vehicle registry discovery needs.
type VehicleFinder interface {
	FindByPlate(ctx context.Context, plate string) (*models.VehicleRef, error)
}

// LinkStore reads and creates vehicle/provider links. Create relies on a
// (vehicle, provider) uniqueness constraint at the storage layer.
type LinkStore interface {
	Find(ctx context.Context, vehicleID string, provider models.Provider) (*models.VehicleProviderLink, error)
	Create(ctx context.Context, vehicleID, deviceID string, provider models.Provider) (bool, error)
}

// Matcher links provider devices to known vehicles by license plate. Unmatched
// plates are not errors: they are vehicles nobody onboarded yet.
type Matcher struct {
	vehicles VehicleFinder
	links    LinkStore
	log      *slog.Logger
}

func NewMatcher(vehicles VehicleFinder, links LinkStore, log *slog.Logger) *Matcher {
	return &Matcher{vehicles: vehicles, links: links, log: log}
}

// Register subscribes the matcher to discovery events on the bus.
func (m *Matcher) Register(b *bus.Bus) {
	b.Subscribe(bus.TopicGPSDiscovered, func(payload any) {
		batch, ok := payload.(models.DiscoveryBatch)
		if !ok {
			m.log.Error("unexpected discovery payload", "payload", payload)
			return
		}
		m.Scan(context.Background(), batch)
	})
}

// Scan processes one discovered device set. Idempotent: a pre-existing link
// for a vehicle short-circuits creation, and the storage constraint collapses
// the create/create race between overlapping scans into a single link.
func (m *Matcher) Scan(ctx context.Context, batch models.DiscoveryBatch) {
	for _, dev := range batch.Devices {
		if dev.Plate == "" || dev.ProviderDeviceID == "" {
			continue
		}
		if err := m.matchDevice(ctx, dev, batch.Provider); err != nil {
			m.log.Error("discovery match failed", "device_id", dev.ProviderDeviceID, "plate", dev.Plate, "error", err)
		}
	}
}

func (m *Matcher) matchDevice(ctx context.Context, dev models.DiscoveredDevice, provider models.Provider) error {
	vehicle, err := m.vehicles.FindByPlate(ctx, dev.Plate)
	if errors.Is(err, store.ErrNotFound) {
		// Not onboarded yet. Next scan will see it again.
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := m.links.Find(ctx, vehicle.ID, provider); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	created, err := m.links.Create(ctx, vehicle.ID, dev.ProviderDeviceID, provider)
	if err != nil {
		return err
	}
	if created {
		observability.LinksCreated.WithLabelValues(string(provider)).Inc()
		m.log.Info("linked device to vehicle",
			"vehicle_id", vehicle.ID, "plate", dev.Plate,
			"device_id", dev.ProviderDeviceID, "provider", provider)
	}
	return nil
}
