// SPDX-License-Identifier: MIT
package metrics

import (
	"context"
	"errors"
	"net/http"
	applog "radar/internal/log"
	"radar/internal/pipeline"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "radar"

// Collector records pipeline activity as Prometheus metrics. It implements
// pipeline.Observer and owns its registry, so several collectors can coexist
// (e.g. in tests).
type Collector struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec   // by status
	runDuration   prometheus.Histogram     // wall time of finished runs
	lastRun       prometheus.Gauge         // unix time of the last completed run
	stageDuration *prometheus.HistogramVec // by kind
	tracesIn      *prometheus.CounterVec   // by kind
	tracesOut     *prometheus.CounterVec   // by kind
	tracesDropped *prometheus.CounterVec   // by kind
}

var _ pipeline.Observer = (*Collector)(nil)

// NewCollector creates a collector with Go runtime and process metrics
// already registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Pipeline runs by terminal status (finished, failed, aborted)",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_run_duration_seconds",
				Help:      "Wall time of pipeline runs",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pipeline_last_run_timestamp_seconds",
				Help:      "Unix timestamp of the last completed run",
			},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of individual stages",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"kind"},
		),
		tracesIn: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_traces_in_total",
				Help:      "Traces consumed by stages",
			},
			[]string{"kind"},
		),
		tracesOut: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_traces_out_total",
				Help:      "Traces produced by stages",
			},
			[]string{"kind"},
		),
		tracesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_traces_dropped_total",
				Help:      "Trailing traces discarded by the stacking remainder policy",
			},
			[]string{"kind"},
		),
	}
}

// StageCompleted implements pipeline.Observer.
func (c *Collector) StageCompleted(_ uuid.UUID, s pipeline.AppliedStage) {
	kind := s.Kind.String()
	c.stageDuration.WithLabelValues(kind).Observe(s.Duration.Seconds())
	c.tracesIn.WithLabelValues(kind).Add(float64(s.InTraces))
	c.tracesOut.WithLabelValues(kind).Add(float64(s.OutTraces))
	c.tracesDropped.WithLabelValues(kind).Add(float64(s.Dropped))
}

// RunCompleted implements pipeline.Observer.
func (c *Collector) RunCompleted(_ uuid.UUID, status pipeline.Status, elapsed time.Duration) {
	c.runsTotal.WithLabelValues(status.String()).Inc()
	if status == pipeline.StatusFinished {
		c.runDuration.Observe(elapsed.Seconds())
	}
	c.lastRun.SetToCurrentTime()
}

// Registry exposes the underlying registry for gathering.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			applog.Warnf("Metrics: Shutdown error: %v", err)
		}
	}()

	applog.Infof("Metrics: Serving Prometheus metrics on http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
