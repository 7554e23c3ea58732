package models

import (
	"errors"
	"fmt"
)

// Provider identifies which external telemetry source produced a record or link.
type Provider string

const (
	ProviderGPSwox Provider = "gpswox"
)

// Position is a single GPS fix with an epoch-seconds timestamp.
type Position struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

func (p Position) CoordsValid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// CanonicalLocation is the provider-agnostic GPS record used everywhere past
// the parsing boundary. Tail holds a bounded trailing history of earlier fixes,
// chronologically non-decreasing, none newer than the current position.
type CanonicalLocation struct {
	DeviceID        string     `json:"device_id"`
	Plate           string     `json:"plate,omitempty"`
	Status          string     `json:"status"`
	Position        Position   `json:"position"`
	Tail            []Position `json:"tail,omitempty"`
	SpeedKmh        *float64   `json:"speed_kmh,omitempty"`
	TotalDistanceKm *float64   `json:"total_distance_km,omitempty"`
	ExternalRef     *string    `json:"external_ref,omitempty"`
	Provider        Provider   `json:"provider"`
}

var (
	ErrMissingDevice = errors.New("missing device identifier")
	ErrBadCoords     = errors.New("coordinates out of range")
	ErrBadTimestamp  = errors.New("non-positive timestamp")
)

func (l *CanonicalLocation) Validate() error {
	if l.DeviceID == "" {
		return ErrMissingDevice
	}
	if !l.Position.CoordsValid() {
		return ErrBadCoords
	}
	if l.Position.Timestamp <= 0 {
		return ErrBadTimestamp
	}
	prev := int64(0)
	for i, p := range l.Tail {
		if !p.CoordsValid() {
			return fmt.Errorf("tail[%d]: %w", i, ErrBadCoords)
		}
		if p.Timestamp > l.Position.Timestamp {
			return fmt.Errorf("tail[%d]: newer than current position", i)
		}
		if p.Timestamp < prev {
			return fmt.Errorf("tail[%d]: timestamps not ascending", i)
		}
		prev = p.Timestamp
	}
	return nil
}
