package models

import "time"

// VehicleRef is the registry view of a vehicle the pipeline needs: its id and
// the license plate discovery matches against. The full vehicle entity is
// owned by the fleet backend, not by this pipeline.
type VehicleRef struct {
	ID    string `json:"id"`
	Plate string `json:"plate"`
}

// VehicleProviderLink associates a provider-assigned device identifier with a
// known vehicle. Unique per (vehicle, provider); created once by discovery.
type VehicleProviderLink struct {
	VehicleID        string    `json:"vehicle_id"`
	ProviderDeviceID string    `json:"provider_device_id"`
	Provider         Provider  `json:"provider"`
	CreatedAt        time.Time `json:"created_at"`
}

// SessionRef is the currently open trip for a vehicle. Sessions are opened and
// closed by business logic elsewhere; the pipeline only appends telemetry and
// rolls distance forward.
type SessionRef struct {
	ID         string    `json:"id"`
	VehicleID  string    `json:"vehicle_id"`
	StartedAt  time.Time `json:"started_at"`
	DistanceKm float64   `json:"distance_km"`
}

// DiscoveredDevice is one device reported by a provider snapshot, before any
// vehicle association exists.
type DiscoveredDevice struct {
	ProviderDeviceID string `json:"provider_device_id"`
	Plate            string `json:"plate"`
}

// DiscoveryBatch is the payload of a discovery event: every device seen in one
// fetch cycle, tagged with the provider that reported them.
type DiscoveryBatch struct {
	Provider Provider           `json:"provider"`
	Devices  []DiscoveredDevice `json:"devices"`
}
