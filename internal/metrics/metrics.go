package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"extrinsicScope/internal/events"
	"extrinsicScope/internal/model"
)

const namespace = "scope"

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	outcomes        *prometheus.CounterVec
	refTime         *prometheus.HistogramVec
	waitResults     *prometheus.CounterVec
	metadataVersion prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Resolved extrinsic outcomes.",
		}, []string{"status", "pallet", "error"}),
		refTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_ref_time",
			Help:      "Reference time weight charged per extrinsic.",
			Buckets:   prometheus.ExponentialBuckets(1e6, 10, 8),
		}, []string{"status"}),
		waitResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wait_results_total",
			Help:      "Terminal states of event wait loops.",
		}, []string{"state"}),
		metadataVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metadata_spec_version",
			Help:      "Spec version of the active metadata.",
		}),
	}
	m.registry.MustRegister(m.outcomes, m.refTime, m.waitResults, m.metadataVersion)
	return m
}

// ObserveCost records the weight charged for a terminal event.
func (m *Metrics) ObserveCost(status string, info events.DispatchInfo) {
	m.refTime.WithLabelValues(status).Observe(float64(info.Weight.RefTime))
}

// ObserveOutcome counts a stored outcome.
func (m *Metrics) ObserveOutcome(record model.OutcomeRecord) {
	m.outcomes.WithLabelValues(record.Status, record.Pallet, record.Error).Inc()
}

// ObserveWait counts a wait loop result by its state name.
func (m *Metrics) ObserveWait(state string) {
	m.waitResults.WithLabelValues(state).Inc()
}

func (m *Metrics) SetMetadataVersion(version uint32) {
	m.metadataVersion.Set(float64(version))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	return m.ServeListener(ctx, ln)
}

// ServeListener exposes /metrics on ln until ctx is done. It closes ln.
func (m *Metrics) ServeListener(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
