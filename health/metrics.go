package health

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pacepace/robocurse/internal/rlog"
)

var logMod = rlog.Module("robocurse/health")

// Metrics is the Prometheus instrumentation exported alongside the
// health.json status file (spec.md §4.8, SPEC_FULL domain stack: C8
// throughput/ETA/chunk-state gauges).
type Metrics struct {
	BytesCompleted  prometheus.Gauge
	ChunksCompleted prometheus.Gauge
	ChunksFailed    prometheus.Gauge
	ChunksPending   prometheus.Gauge
	ActiveJobs      prometheus.Gauge
	EtaSeconds      prometheus.Gauge
	ThroughputBps   prometheus.Gauge
	ChunkOutcomes   *prometheus.CounterVec
}

// NewMetrics registers a fresh Metrics set with registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		BytesCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robocurse", Name: "bytes_completed", Help: "Cumulative bytes replicated in the current run.",
		}),
		ChunksCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robocurse", Name: "chunks_completed", Help: "Chunks that finished successfully or with warnings.",
		}),
		ChunksFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robocurse", Name: "chunks_failed", Help: "Chunks that exhausted retries.",
		}),
		ChunksPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robocurse", Name: "chunks_pending", Help: "Chunks waiting in the queue.",
		}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robocurse", Name: "active_jobs", Help: "Copier subprocesses currently running.",
		}),
		EtaSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robocurse", Name: "eta_seconds", Help: "Estimated seconds remaining for the current run, -1 if unknown.",
		}),
		ThroughputBps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robocurse", Name: "throughput_bytes_per_second", Help: "Instantaneous replication throughput.",
		}),
		ChunkOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "robocurse", Name: "chunk_outcomes_total", Help: "Chunk completions by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(m.BytesCompleted, m.ChunksCompleted, m.ChunksFailed, m.ChunksPending,
		m.ActiveJobs, m.EtaSeconds, m.ThroughputBps, m.ChunkOutcomes)

	return m
}

// Update refreshes the gauges from status and an ETA computation. Call
// this immediately before or after Writer.Write so both sinks agree.
func (m *Metrics) Update(status Status, eta ETA) {
	m.BytesCompleted.Set(float64(status.BytesCompleted))
	m.ChunksCompleted.Set(float64(status.ChunksCompleted))
	m.ChunksFailed.Set(float64(status.ChunksFailed))
	m.ChunksPending.Set(float64(status.ChunksPending))
	m.ActiveJobs.Set(float64(status.ActiveJobs))

	if eta.Valid {
		m.EtaSeconds.Set(eta.Value.Seconds())
	} else {
		m.EtaSeconds.Set(-1)
	}
}

// RecordOutcome increments the per-outcome completion counter.
func (m *Metrics) RecordOutcome(outcome string) {
	m.ChunkOutcomes.WithLabelValues(outcome).Inc()
}

// Server exposes /metrics and /healthz over HTTP, grounded on the
// teacher's gorilla/mux-based metrics listener
// (cli/observability_flags.go's maybeStartListener).
type Server struct {
	addr     string
	registry *prometheus.Registry
	reader   *Reader
}

// NewServer returns a Server serving Prometheus metrics from registry
// and a JSON health summary read through reader.
func NewServer(addr string, registry *prometheus.Registry, reader *Reader) *Server {
	return &Server{addr: addr, registry: registry, reader: reader}
}

// ListenAndServe blocks serving the metrics/health endpoints until ctx
// is cancelled or an unrecoverable listener error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", s.HandleHealthz)

	srv := &http.Server{Addr: s.addr, Handler: router}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}

		return err
	}
}

// HandleHealthz serves the JSON health summary; exported so tests can
// drive it directly without binding a real listener.
func (s *Server) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	status, stale, err := s.reader.Read(0)
	if err != nil {
		logMod(r.Context()).Warn("healthz: failed to read status file", rlog.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	if stale || !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"healthy":` + boolStr(status.Healthy) + `}`))
}

func boolStr(b bool) string {
	if b {
		return "true"
	}

	return "false"
}
