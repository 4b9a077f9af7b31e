// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cutover

import (
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "relocate_cutover"

// Collector is a prometheus.Collector that collects metrics about
// domain cutovers.
type Collector struct {
	cutovers      *prometheus.CounterVec
	finalizations *prometheus.CounterVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		cutovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cutovers_total",
				Help:      "The number of domain cutovers, by result of the first phase.",
			}, []string{"result"},
		),
		finalizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "finalizations_total",
				Help:      "The number of cutover finalizations, by result.",
			}, []string{"result"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.cutovers.Describe(ch)
	c.finalizations.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.cutovers.Collect(ch)
	c.finalizations.Collect(ch)
}

func (c *Collector) cutoverDone(err error) {
	if c == nil {
		return
	}
	c.cutovers.WithLabelValues(result(err)).Inc()
}

func (c *Collector) finalizeDone(err error) {
	if c == nil {
		return
	}
	c.finalizations.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrFinalizeCancelled):
		return "cancelled"
	}
	return "failure"
}
