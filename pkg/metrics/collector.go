// Package metrics exposes modifier executions as Prometheus metrics. The
// Collector is an activity hook, so it is attached with
// store.WithActivityHooks like any other sink.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-store/pkg/activity"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Collector tracks in-flight calls, settled calls and their durations per
// modifier.
type Collector struct {
	inflight      *prometheus.GaugeVec
	executions    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	registrations *prometheus.CounterVec
}

// NewCollector creates the metrics under namespace and registers them with
// reg. A nil reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "modifier_inflight",
				Help:      "Number of modifier calls currently in flight",
			},
			[]string{"modifier"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modifier_executions_total",
				Help:      "Total number of settled modifier calls",
			},
			[]string{"modifier", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "modifier_execution_duration_seconds",
				Help:      "Time from a modifier call starting to its reducers being applied",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"modifier", "outcome"},
		),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modifier_registrations_total",
				Help:      "Total number of modifier registrations",
			},
			[]string{"modifier"},
		),
	}
	if reg == nil {
		return c, nil
	}
	for _, collector := range []prometheus.Collector{c.inflight, c.executions, c.duration, c.registrations} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return c, nil
}

// Notify implements activity.ActivityHook.
func (c *Collector) Notify(_ context.Context, event activity.Event) error {
	modifier, _ := event.Metadata["modifier"].(string)
	if modifier == "" {
		return nil
	}
	switch event.Verb {
	case activity.VerbModifierRegistered:
		c.registrations.WithLabelValues(modifier).Inc()
	case activity.VerbModifierStarted:
		c.inflight.WithLabelValues(modifier).Inc()
	case activity.VerbModifierCompleted:
		c.settled(modifier, OutcomeCompleted, event.Metadata)
	case activity.VerbModifierFailed:
		c.settled(modifier, OutcomeFailed, event.Metadata)
	}
	return nil
}

func (c *Collector) settled(modifier, outcome string, meta map[string]any) {
	c.inflight.WithLabelValues(modifier).Dec()
	c.executions.WithLabelValues(modifier, outcome).Inc()
	if d, ok := meta["duration"].(time.Duration); ok {
		c.duration.WithLabelValues(modifier, outcome).Observe(d.Seconds())
	}
}
