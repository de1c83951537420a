// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package vmmetrics implements the effectvm.Metrics hook with Prometheus
// collectors, grounded on oriys-nova/internal/metrics/prometheus.go's
// namespace + registry + CounterVec/GaugeVec/HistogramVec shape.
package vmmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements effectvm.Metrics. It is not referenced by that
// interface name here to keep this package free of a compiled dependency
// on effectvm — Options.Metrics accepts it structurally.
type Collector struct {
	registry *prometheus.Registry

	performsTotal    *prometheus.CounterVec
	dispatchDepth    prometheus.Histogram
	schedulerReady   prometheus.Gauge
	schedulerWaiting prometheus.Gauge
	errorsTotal      *prometheus.CounterVec
}

// New builds a Collector registered under namespace, with its own private
// prometheus.Registry (so multiple VMs in one process, or tests, don't
// collide registering the same metric names against the global default
// registry).
func New(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		performsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "effect_performs_total",
				Help:      "Total Perform dispatches, by effect kind.",
			},
			[]string{"effect_kind"},
		),
		dispatchDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_depth",
				Help:      "Depth of the active dispatch stack observed at each Perform.",
				Buckets:   prometheus.LinearBuckets(0, 2, 10),
			},
		),
		schedulerReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_ready_tasks",
				Help:      "Number of tasks currently ready to run.",
			},
		),
		schedulerWaiting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_waiting_tasks",
				Help:      "Number of tasks currently parked awaiting a Wait/Gather/Race/AwaitPromise.",
			},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors observed, by Error.Kind.",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		c.performsTotal,
		c.dispatchDepth,
		c.schedulerReady,
		c.schedulerWaiting,
		c.errorsTotal,
	)
	return c
}

// ObservePerform implements effectvm.Metrics.
func (c *Collector) ObservePerform(effectKind string) {
	c.performsTotal.WithLabelValues(effectKind).Inc()
}

// ObserveDispatchDepth implements effectvm.Metrics.
func (c *Collector) ObserveDispatchDepth(depth int) {
	c.dispatchDepth.Observe(float64(depth))
}

// ObserveSchedulerTasks implements effectvm.Metrics.
func (c *Collector) ObserveSchedulerTasks(ready, waiting int) {
	c.schedulerReady.Set(float64(ready))
	c.schedulerWaiting.Set(float64(waiting))
}

// ObserveError implements effectvm.Metrics.
func (c *Collector) ObserveError(kind string) {
	c.errorsTotal.WithLabelValues(kind).Inc()
}

// Handler returns an http.Handler serving this Collector's metrics in the
// Prometheus exposition format, for wiring into a scrape endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for callers that want to
// register further collectors alongside this one.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
