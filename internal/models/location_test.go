package models

import "testing"

func validLocation() CanonicalLocation {
	return CanonicalLocation{
		DeviceID: "D1",
		Plate:    "ABC123",
		Status:   "online",
		Position: Position{Lat: -33.45, Lng: -70.66, Timestamp: 1000},
		Tail: []Position{
			{Lat: -33.44, Lng: -70.65, Timestamp: 900},
			{Lat: -33.45, Lng: -70.66, Timestamp: 1000},
		},
		Provider: ProviderGPSwox,
	}
}

func TestValidateAcceptsWellFormedRecord(t *testing.T) {
	loc := validLocation()
	if err := loc.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CanonicalLocation)
	}{
		{"missing device id", func(l *CanonicalLocation) { l.DeviceID = "" }},
		{"latitude too big", func(l *CanonicalLocation) { l.Position.Lat = 90.1 }},
		{"latitude too small", func(l *CanonicalLocation) { l.Position.Lat = -90.1 }},
		{"longitude too big", func(l *CanonicalLocation) { l.Position.Lng = 180.1 }},
		{"longitude too small", func(l *CanonicalLocation) { l.Position.Lng = -180.1 }},
		{"zero timestamp", func(l *CanonicalLocation) { l.Position.Timestamp = 0 }},
		{"tail newer than current", func(l *CanonicalLocation) { l.Tail[0].Timestamp = 2000 }},
		{"tail out of order", func(l *CanonicalLocation) { l.Tail[0].Timestamp = 950; l.Tail[1].Timestamp = 940 }},
		{"tail bad coords", func(l *CanonicalLocation) { l.Tail[1].Lng = 181 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loc := validLocation()
			tc.mutate(&loc)
			if err := loc.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestValidateBoundaryCoordinates(t *testing.T) {
	loc := validLocation()
	loc.Tail = nil
	loc.Position = Position{Lat: 90, Lng: -180, Timestamp: 1}
	if err := loc.Validate(); err != nil {
		t.Fatalf("boundary coordinates should be valid: %v", err)
	}
}
