package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"fleettrack/internal/bus"
	"fleettrack/internal/models"
	"fleettrack/internal/observability"
	"fleettrack/internal/provider"
	"fleettrack/internal/toggles"
)

// Fetcher fetches one raw snapshot from the provider.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint, apiKey string) ([]provider.RawGroup, error)
}

// Parser normalizes a raw snapshot into canonical records.
type Parser interface {
	Parse(groups []provider.RawGroup) ([]models.CanonicalLocation, int)
}

// ToggleStore is polled once per tick to decide whether the cycle runs and
// where to fetch from.
type ToggleStore interface {
	FindByName(ctx context.Context, name string) (*toggles.Toggle, error)
}

// Scheduler drives ingestion for one provider on a fixed interval. Cycles are
// fire-and-forget relative to the tick, but overlapping cycles for the same
// provider are mutually exclusive through an in-flight flag: a tick that finds
// the previous cycle still running is skipped, which keeps discovery writes
// and event emission single per snapshot.
type Scheduler struct {
	provider     models.Provider
	toggleName   string
	interval     time.Duration
	fetchTimeout time.Duration

	togglesStore ToggleStore
	fetcher      Fetcher
	parser       Parser
	bus          *bus.Bus
	log          *slog.Logger

	inFlight atomic.Bool
}

func New(
	prov models.Provider,
	interval, fetchTimeout time.Duration,
	togglesStore ToggleStore,
	fetcher Fetcher,
	parser Parser,
	b *bus.Bus,
	log *slog.Logger,
) *Scheduler {
	return &Scheduler{
		provider:     prov,
		toggleName:   "gps-provider-" + string(prov),
		interval:     interval,
		fetchTimeout: fetchTimeout,
		togglesStore: togglesStore,
		fetcher:      fetcher,
		parser:       parser,
		bus:          b,
		log:          log,
	}
}

// Run ticks until the context is cancelled. A failing cycle is logged and
// swallowed; nothing cancels the schedule.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "provider", s.provider, "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped", "provider", s.provider)
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick launches one cycle unless the previous one is still in flight.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		observability.CyclesSkipped.WithLabelValues(string(s.provider)).Inc()
		s.log.Warn("previous cycle still in flight, skipping tick", "provider", s.provider)
		return
	}
	go func() {
		defer s.inFlight.Store(false)
		s.cycle(ctx)
	}()
}

func (s *Scheduler) cycle(ctx context.Context) {
	toggle, err := s.togglesStore.FindByName(ctx, s.toggleName)
	if err != nil {
		s.log.Error("toggle lookup failed", "toggle", s.toggleName, "error", err)
		return
	}
	if toggle == nil || !toggle.Enabled {
		return
	}

	observability.FetchCycles.WithLabelValues(string(s.provider)).Inc()

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	groups, err := s.fetcher.Fetch(fetchCtx, toggle.Metadata.Endpoint, toggle.Metadata.APIKey)
	if err != nil {
		observability.FetchErrors.WithLabelValues(string(s.provider)).Inc()
		s.log.Error("provider fetch failed", "provider", s.provider, "error", err)
		return
	}

	locations, skipped := s.parser.Parse(groups)
	observability.RecordsParsed.WithLabelValues(string(s.provider)).Add(float64(len(locations)))
	if skipped > 0 {
		observability.ParseSkips.WithLabelValues(string(s.provider)).Add(float64(skipped))
		s.log.Warn("skipped malformed provider entries", "provider", s.provider, "skipped", skipped)
	}
	if len(locations) == 0 {
		return
	}

	// Discovery first so a brand-new device can be linked before its very
	// next point arrives; within this cycle the two consumers stay
	// independent.
	s.bus.Publish(bus.TopicGPSDiscovered, provider.Discovered(locations))
	for _, loc := range locations {
		s.bus.Publish(bus.TopicGPSUpdated, loc)
	}

	s.log.Info("ingestion cycle complete", "provider", s.provider, "records", len(locations), "skipped", skipped)
}
