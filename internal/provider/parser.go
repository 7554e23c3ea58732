package provider

import (
	"sort"
	"strconv"

	"fleettrack/internal/models"
)

// Parser normalizes raw provider groups into canonical location records.
// It is pure and stateless: no call mutates its inputs or touches the network.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

const maxTailPoints = 15

// Parse expands every group into zero or more canonical records, one per
// device. Malformed devices are skipped and counted; one bad entry never
// drops the rest of the batch. Output order across devices is not defined.
func (p *Parser) Parse(groups []RawGroup) ([]models.CanonicalLocation, int) {
	var out []models.CanonicalLocation
	skipped := 0

	for _, g := range groups {
		for _, d := range g.Items {
			loc, ok := p.parseDevice(d)
			if !ok {
				skipped++
				continue
			}
			out = append(out, loc)
		}
	}
	return out, skipped
}

func (p *Parser) parseDevice(d rawDevice) (models.CanonicalLocation, bool) {
	loc := models.CanonicalLocation{
		DeviceID: d.ID.String(),
		Plate:    "",
		Status:   d.Online,
		Position: models.Position{Lat: d.Lat, Lng: d.Lng, Timestamp: d.Timestamp},
		SpeedKmh: d.Speed,
		Provider: models.ProviderGPSwox,
	}
	if d.DeviceData != nil {
		loc.Plate = d.DeviceData.PlateNumber
		loc.TotalDistanceKm = d.DeviceData.TotalDistance
		loc.ExternalRef = d.DeviceData.TraccarUID
	}
	if loc.Plate == "" {
		loc.Plate = d.Name
	}
	loc.Tail = parseTail(d.Tail, d.Timestamp)

	if err := loc.Validate(); err != nil {
		return models.CanonicalLocation{}, false
	}
	return loc, true
}

// parseTail converts the string-typed tail coordinates, drops entries that are
// unparsable, out of range or newer than the current fix, and sorts the rest
// ascending so the trailing-history invariant holds even when the provider
// emits newest-first.
func parseTail(tail []rawTail, currentTS int64) []models.Position {
	var out []models.Position
	for _, t := range tail {
		lat, err1 := strconv.ParseFloat(t.Lat, 64)
		lng, err2 := strconv.ParseFloat(t.Lng, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		pos := models.Position{Lat: lat, Lng: lng, Timestamp: t.At}
		if !pos.CoordsValid() || pos.Timestamp <= 0 || pos.Timestamp > currentTS {
			continue
		}
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if len(out) > maxTailPoints {
		out = out[len(out)-maxTailPoints:]
	}
	return out
}

// Discovered extracts the device identifiers and plates from a batch of
// canonical records for the discovery scan.
func Discovered(locs []models.CanonicalLocation) models.DiscoveryBatch {
	batch := models.DiscoveryBatch{Provider: models.ProviderGPSwox}
	for _, l := range locs {
		batch.Devices = append(batch.Devices, models.DiscoveredDevice{
			ProviderDeviceID: l.DeviceID,
			Plate:            l.Plate,
		})
	}
	return batch
}
