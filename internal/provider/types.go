package provider

import "encoding/json"

// Raw wire shapes for the GPSwox-style snapshot API. These never escape this
// package: the parser turns them into models.CanonicalLocation and the rest of
// the pipeline never sees provider-specific JSON.

// RawGroup is one device group as returned by the provider. A group can carry
// any number of devices.
type RawGroup struct {
	ID    int         `json:"id"`
	Title string      `json:"title"`
	Items []rawDevice `json:"items"`
}

type rawDevice struct {
	ID         json.Number `json:"id"`
	Name       string      `json:"name"`
	Online     string      `json:"online"`
	Lat        float64     `json:"lat"`
	Lng        float64     `json:"lng"`
	Speed      *float64    `json:"speed"`
	Timestamp  int64       `json:"timestamp"`
	Tail       []rawTail   `json:"tail"`
	DeviceData *rawDevData `json:"device_data"`
}

// Tail coordinates arrive as strings on the wire.
type rawTail struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
	At  int64  `json:"at"`
}

type rawDevData struct {
	PlateNumber   string   `json:"plate_number"`
	TotalDistance *float64 `json:"total_distance"`
	TraccarUID    *string  `json:"traccar_uid"`
}
