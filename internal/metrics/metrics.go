// Package metrics exposes arena activity as Prometheus metrics.
// Collectors are fed from hub hooks and orchestrator lifecycle hooks.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/hub"
	"github.com/aretw0/arena/pkg/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the arena collectors.
type Metrics struct {
	registry *prometheus.Registry

	Turns           *prometheus.CounterVec
	FanoutFailures  prometheus.Counter
	MalformedEvents prometheus.Counter
	Steps           *prometheus.CounterVec
	Runs            *prometheus.CounterVec
	Generation      *prometheus.HistogramVec
	Observers       prometheus.Gauge
}

// New creates the collectors and registers them, with the Go and process collectors,
// on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_turns_total",
			Help: "Turns fanned out to observers, by kind.",
		}, []string{"kind"}),
		FanoutFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_fanout_failures_total",
			Help: "Observer connections dropped because a send failed.",
		}),
		MalformedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_malformed_events_total",
			Help: "Inbound observer frames dropped as malformed.",
		}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_steps_total",
			Help: "Pipeline step attempts, by step and outcome.",
		}, []string{"step", "outcome"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_runs_total",
			Help: "Finished runs, by outcome.",
		}, []string{"outcome"}),
		Generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_generation_seconds",
			Help:    "Duration of successful generate steps, by participant.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"participant"}),
		Observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_observers",
			Help: "Attached observer connections.",
		}),
	}
	m.registry.MustRegister(
		m.Turns, m.FanoutFailures, m.MalformedEvents,
		m.Steps, m.Runs, m.Generation, m.Observers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// TrackSessions registers arena_sessions, read from count at scrape time.
func (m *Metrics) TrackSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "arena_sessions",
		Help: "Sessions with a running hub.",
	}, func() float64 { return float64(count()) }))
}

// Registry returns the registry holding every arena collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HubHooks returns hub callbacks that record session activity.
func (m *Metrics) HubHooks() hub.Hooks {
	return hub.Hooks{
		OnTurn: func(_ string, turn domain.Turn) {
			m.Turns.WithLabelValues(string(turn.Kind)).Inc()
		},
		OnDeliveryError: func(string, *domain.DeliveryError) {
			m.FanoutFailures.Inc()
		},
		OnMalformed: func(string, error) {
			m.MalformedEvents.Inc()
		},
		OnAttach: func(string) { m.Observers.Inc() },
		OnDetach: func(string) { m.Observers.Dec() },
	}
}

// LifecycleHooks returns orchestrator callbacks that record step and run outcomes.
// next, if set, is called after each metric is recorded.
func (m *Metrics) LifecycleHooks(next domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: next.OnStepStart,
		OnStepComplete: func(ctx context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(string(e.Step), "completed").Inc()
			if e.Kind == string(orchestrator.KindGenerate) {
				m.Generation.WithLabelValues(e.Sender).Observe(e.Duration.Seconds())
			}
			if next.OnStepComplete != nil {
				next.OnStepComplete(ctx, e)
			}
		},
		OnStepFail: func(ctx context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(string(e.Step), "failed").Inc()
			if next.OnStepFail != nil {
				next.OnStepFail(ctx, e)
			}
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			m.Runs.WithLabelValues(string(e.Status)).Inc()
			if next.OnRunFinish != nil {
				next.OnRunFinish(ctx, e)
			}
		},
	}
}
