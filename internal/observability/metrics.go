package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_fetch_cycles_total",
		Help: "Fetch cycles started, per provider",
	}, []string{"provider"})
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_fetch_errors_total",
		Help: "Provider fetches that failed at the network/HTTP level",
	}, []string{"provider"})
	CyclesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_cycles_skipped_total",
		Help: "Ticks skipped because the previous cycle was still in flight",
	}, []string{"provider"})
	RecordsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_records_parsed_total",
		Help: "Canonical location records produced by the parser",
	}, []string{"provider"})
	ParseSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_parse_skips_total",
		Help: "Raw entries skipped as malformed",
	}, []string{"provider"})
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_events_published_total",
		Help: "Events published on the in-process bus, per topic",
	}, []string{"topic"})
	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettrack_jobs_enqueued_total",
		Help: "Ingest jobs published to the queue",
	})
	JobsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettrack_jobs_persisted_total",
		Help: "Ingest jobs whose location row was written (or deduplicated)",
	})
	JobsUnresolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettrack_jobs_unresolved_total",
		Help: "Ingest jobs dropped because no vehicle mapping exists",
	})
	LinksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_links_created_total",
		Help: "Vehicle/provider links created by discovery",
	}, []string{"provider"})
	PersistLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleettrack_persist_latency_seconds",
		Help:    "Latency of one job's resolve-and-persist path",
		Buckets: prometheus.DefBuckets,
	})
)

func ObservePersistLatency(start time.Time) {
	PersistLatency.Observe(time.Since(start).Seconds())
}

// StartMetricsServer serves /metrics and /healthz; extra handlers (the live
// websocket feed) are mounted on the same listener.
func StartMetricsServer(port string, extra map[string]http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	for path, h := range extra {
		mux.Handle(path, h)
	}
	return http.ListenAndServe(":"+port, mux)
}
