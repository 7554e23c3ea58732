package ingest

import (
	"context"
	"log/slog"

	"fleettrack/internal/bus"
	"fleettrack/internal/models"
)

// JobEnqueuer publishes one job to the durable queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job models.IngestJob) error
}

// Enqueuer bridges the bus to the queue: every gps.updated event becomes one
// ingest job. Enqueue failures are logged and dropped; the provider returns
// full snapshots, so the next cycle re-emits current state.
type Enqueuer struct {
	queue JobEnqueuer
	log   *slog.Logger
}

func NewEnqueuer(queue JobEnqueuer, log *slog.Logger) *Enqueuer {
	return &Enqueuer{queue: queue, log: log}
}

func (e *Enqueuer) Register(b *bus.Bus) {
	b.Subscribe(bus.TopicGPSUpdated, func(payload any) {
		loc, ok := payload.(models.CanonicalLocation)
		if !ok {
			e.log.Error("unexpected location payload", "payload", payload)
			return
		}
		job := models.NewIngestJob(loc)
		if err := e.queue.Enqueue(context.Background(), job); err != nil {
			e.log.Error("failed to enqueue job", "device_id", loc.DeviceID, "error", err)
		}
	})
}
