package models

import (
	"time"

	"github.com/google/uuid"
)

// JobKindLocationUpdated tags location-update jobs on the queue. New kinds get
// new constants; the queue plumbing never switches on them.
const JobKindLocationUpdated = "gps.updated"

// IngestJob is one queued unit of work: a single canonical location awaiting
// persistence. The vehicle and session are resolved at consume time so a
// redelivered job never carries a stale mapping.
type IngestJob struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Location  CanonicalLocation `json:"location"`
	CreatedAt time.Time         `json:"created_at"`
}

func NewIngestJob(loc CanonicalLocation) IngestJob {
	return IngestJob{
		ID:        uuid.NewString(),
		Kind:      JobKindLocationUpdated,
		Location:  loc,
		CreatedAt: time.Now().UTC(),
	}
}
