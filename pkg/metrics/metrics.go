// Package metrics exposes Prometheus counters for persistence and CLI activity.
//
// A Recorder owns a private registry so several engines (or tests) in one
// process never collide. Every method is safe on a nil *Recorder.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "margin"

// Autosave modes.
const (
	ModeAtomic = "atomic"
	ModeNative = "native"
)

// Persistence branches.
const (
	BranchAutosave = "autosave"
	BranchSnapshot = "snapshot"
)

// CLI call outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
	OutcomeBadOutput = "bad_output"
	OutcomeTimeout   = "timeout"
)

// Recorder records engine metrics.
type Recorder struct {
	registry *prometheus.Registry

	autosaves       *prometheus.CounterVec
	snapshots       prometheus.Counter
	persistFailures *prometheus.CounterVec
	ticks           prometheus.Counter
	cliCalls        *prometheus.CounterVec
	cliDuration     *prometheus.HistogramVec
}

// New creates a recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		autosaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autosaves_total",
			Help:      "Autosaves performed, by write mode.",
		}, []string{"mode"}),
		snapshots: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot files written.",
		}),
		persistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed persistence branches; the buffer is retried on the next tick.",
		}, []string{"branch"}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Scheduler ticks run.",
		}),
		cliCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cli_calls_total",
			Help:      "margin CLI invocations, by subcommand and outcome.",
		}, []string{"subcommand", "outcome"}),
		cliDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cli_duration_seconds",
			Help:      "margin CLI call latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"subcommand"}),
	}
}

// Registry returns the registry the recorder's collectors live in.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the recorder's metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) RecordAutosave(mode string) {
	if r == nil {
		return
	}
	r.autosaves.WithLabelValues(mode).Inc()
}

func (r *Recorder) RecordSnapshot() {
	if r == nil {
		return
	}
	r.snapshots.Inc()
}

func (r *Recorder) RecordPersistFailure(branch string) {
	if r == nil {
		return
	}
	r.persistFailures.WithLabelValues(branch).Inc()
}

func (r *Recorder) RecordTick() {
	if r == nil {
		return
	}
	r.ticks.Inc()
}

// RecordCLICall counts one CLI invocation and observes its duration.
func (r *Recorder) RecordCLICall(subcommand, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.cliCalls.WithLabelValues(subcommand, outcome).Inc()
	r.cliDuration.WithLabelValues(subcommand).Observe(d.Seconds())
}
