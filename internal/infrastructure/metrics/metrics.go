// Package metrics exposes run, stage and history counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/ports"
)

// Metrics implements ports.RunObserver on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	StageTransitions *prometheus.CounterVec
	HistoryOps       *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmpilot_runs_total",
				Help: "Analysis runs by outcome (succeeded, failed, discarded)",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pmpilot_run_duration_seconds",
				Help:    "Time from submission to a terminal state",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to 512s
			},
			[]string{"outcome"},
		),
		StageTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmpilot_stage_transitions_total",
				Help: "Progress stages entered by the choreographer",
			},
			[]string{"stage"},
		),
		HistoryOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmpilot_history_operations_total",
				Help: "History cache mutations by operation and result",
			},
			[]string{"op", "result"},
		),
	}
}

func (m *Metrics) RunFinished(state domain.RunState, duration time.Duration) {
	m.RunsTotal.WithLabelValues(string(state)).Inc()
	m.RunDuration.WithLabelValues(string(state)).Observe(duration.Seconds())
}

func (m *Metrics) RunDiscarded() {
	m.RunsTotal.WithLabelValues("discarded").Inc()
}

func (m *Metrics) StageAdvanced(stageID string) {
	m.StageTransitions.WithLabelValues(stageID).Inc()
}

func (m *Metrics) HistoryOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.HistoryOps.WithLabelValues(op, result).Inc()
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger ports.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) && logger != nil {
			logger.Error("metrics server stopped", err, map[string]interface{}{"addr": addr})
		}
	}()
	if logger != nil {
		logger.Info("metrics listening", map[string]interface{}{"addr": listener.Addr().String()})
	}
	return nil
}

var _ ports.RunObserver = (*Metrics)(nil)
