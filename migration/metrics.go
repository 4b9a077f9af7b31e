// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package migration

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "relocate_migration"

// Collector is a prometheus.Collector that collects metrics about
// account migrations.
type Collector struct {
	accounts       *prometheus.CounterVec
	stepsCompleted *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		accounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "accounts_total",
				Help:      "The number of account migrations, by result.",
			}, []string{"result"},
		),
		stepsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "steps_completed_total",
				Help:      "The number of completed account migration steps.",
			}, []string{"step"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "step_duration_seconds",
				Help:      "The time taken by account migration steps.",
				Buckets:   []float64{0.1, 1, 5, 30, 60, 300, 900, 3600},
			}, []string{"step"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.accounts.Describe(ch)
	c.stepsCompleted.Describe(ch)
	c.stepDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.accounts.Collect(ch)
	c.stepsCompleted.Collect(ch)
	c.stepDuration.Collect(ch)
}

func (c *Collector) stepDone(step Step, seconds float64) {
	if c == nil {
		return
	}
	c.stepsCompleted.WithLabelValues(step.String()).Inc()
	c.stepDuration.WithLabelValues(step.String()).Observe(seconds)
}

func (c *Collector) accountDone(err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.accounts.WithLabelValues(result).Inc()
}
