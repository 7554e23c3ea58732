package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"fleettrack/internal/models"
	"fleettrack/internal/queue"
	"fleettrack/internal/store"
)

type fakeLinks struct {
	byDevice map[string]*models.VehicleProviderLink
}

func (f *fakeLinks) FindByDevice(_ context.Context, deviceID string, provider models.Provider) (*models.VehicleProviderLink, error) {
	if l, ok := f.byDevice[deviceID+"|"+string(provider)]; ok {
		return l, nil
	}
	return nil, store.ErrNotFound
}

type fakeSessions struct {
	open      map[string]*models.SessionRef // vehicleID -> open session
	odometers map[string]float64
	failFind  error
}

func (f *fakeSessions) FindOpen(_ context.Context, vehicleID string) (*models.SessionRef, error) {
	if f.failFind != nil {
		return nil, f.failFind
	}
	if s, ok := f.open[vehicleID]; ok {
		return s, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeSessions) UpdateOdometer(_ context.Context, sessionID string, km float64) error {
	if f.odometers == nil {
		f.odometers = make(map[string]float64)
	}
	f.odometers[sessionID] = km
	return nil
}

// fakeLocations enforces the (vehicle, timestamp) idempotence contract the
// real table provides through its unique constraint.
type fakeLocations struct {
	mu   sync.Mutex
	rows map[string]persistedRow // vehicleID|timestamp
}

type persistedRow struct {
	sessionID *string
	loc       models.CanonicalLocation
}

func newFakeLocations() *fakeLocations {
	return &fakeLocations{rows: make(map[string]persistedRow)}
}

func (f *fakeLocations) Insert(_ context.Context, vehicleID string, sessionID *string, loc models.CanonicalLocation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := vehicleID + "|" + strconv.FormatInt(loc.Position.Timestamp, 10)
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	f.rows[k] = persistedRow{sessionID: sessionID, loc: loc}
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func location(deviceID string, ts int64) models.CanonicalLocation {
	return models.CanonicalLocation{
		DeviceID: deviceID,
		Plate:    "ABC123",
		Status:   "online",
		Position: models.Position{Lat: -33.45, Lng: -70.66, Timestamp: ts},
		Provider: models.ProviderGPSwox,
	}
}

func linkedWorker(t *testing.T) (*Worker, *fakeSessions, *fakeLocations) {
	t.Helper()
	links := &fakeLinks{byDevice: map[string]*models.VehicleProviderLink{
		"D1|gpswox": {VehicleID: "V1", ProviderDeviceID: "D1", Provider: models.ProviderGPSwox},
	}}
	sessions := &fakeSessions{open: map[string]*models.SessionRef{
		"V1": {ID: "S1", VehicleID: "V1"},
	}}
	locations := newFakeLocations()
	return NewWorker(links, sessions, locations, testLogger()), sessions, locations
}

func TestHandlePersistsResolvedJob(t *testing.T) {
	w, sessions, locations := linkedWorker(t)

	loc := location("D1", 1000)
	dist := 1234.5
	loc.TotalDistanceKm = &dist

	if got := w.Handle(context.Background(), models.NewIngestJob(loc)); got != queue.Done {
		t.Fatalf("expected Done, got %v", got)
	}
	if len(locations.rows) != 1 {
		t.Fatalf("expected one persisted row, got %d", len(locations.rows))
	}
	for _, row := range locations.rows {
		if row.sessionID == nil || *row.sessionID != "S1" {
			t.Errorf("expected row attached to session S1, got %v", row.sessionID)
		}
	}
	if sessions.odometers["S1"] != 1234.5 {
		t.Errorf("expected odometer rollup 1234.5, got %v", sessions.odometers["S1"])
	}
}

func TestHandleDropsUnresolvedVehicle(t *testing.T) {
	links := &fakeLinks{byDevice: map[string]*models.VehicleProviderLink{}}
	locations := newFakeLocations()
	w := NewWorker(links, &fakeSessions{}, locations, testLogger())

	if got := w.Handle(context.Background(), models.NewIngestJob(location("UNKNOWN", 1000))); got != queue.Done {
		t.Fatalf("unresolved vehicle must be dropped (Done), got %v", got)
	}
	if len(locations.rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(locations.rows))
	}
}

func TestHandleRedeliveryIsIdempotent(t *testing.T) {
	w, sessions, locations := linkedWorker(t)

	job := models.NewIngestJob(location("D1", 1000))
	if got := w.Handle(context.Background(), job); got != queue.Done {
		t.Fatalf("first delivery: expected Done, got %v", got)
	}
	if got := w.Handle(context.Background(), job); got != queue.Done {
		t.Fatalf("redelivery: expected Done, got %v", got)
	}

	if len(locations.rows) != 1 {
		t.Fatalf("expected exactly one row after redelivery, got %d", len(locations.rows))
	}
	// Duplicate insert must not re-roll the odometer.
	if len(sessions.odometers) != 0 {
		t.Errorf("expected no odometer update without TotalDistanceKm, got %v", sessions.odometers)
	}
}

func TestHandleNoOpenSession(t *testing.T) {
	links := &fakeLinks{byDevice: map[string]*models.VehicleProviderLink{
		"D1|gpswox": {VehicleID: "V1", ProviderDeviceID: "D1", Provider: models.ProviderGPSwox},
	}}
	locations := newFakeLocations()
	w := NewWorker(links, &fakeSessions{}, locations, testLogger())

	if got := w.Handle(context.Background(), models.NewIngestJob(location("D1", 1000))); got != queue.Done {
		t.Fatalf("expected Done, got %v", got)
	}
	for _, row := range locations.rows {
		if row.sessionID != nil {
			t.Errorf("expected no session attached, got %v", *row.sessionID)
		}
	}
}

func TestHandleTransientFailureRequestsRetry(t *testing.T) {
	links := &fakeLinks{byDevice: map[string]*models.VehicleProviderLink{
		"D1|gpswox": {VehicleID: "V1", ProviderDeviceID: "D1", Provider: models.ProviderGPSwox},
	}}
	sessions := &fakeSessions{failFind: errors.New("connection reset")}
	w := NewWorker(links, sessions, newFakeLocations(), testLogger())

	if got := w.Handle(context.Background(), models.NewIngestJob(location("D1", 1000))); got != queue.Retry {
		t.Fatalf("expected Retry on transient store failure, got %v", got)
	}
}
