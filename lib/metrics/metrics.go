// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports patchbay activity as Prometheus metrics:
// scan latency and outcome, graph size, connect/disconnect outcomes
// and reconciliation ticks.
//
// Every method is safe on a nil *Metrics, so components take an
// optional *Metrics and call it unconditionally.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rdx-project/patchbay/lib/jack"
)

const namespace = "patchbay"

// Metrics holds the collectors and the registry they are registered
// in.
type Metrics struct {
	registry *prometheus.Registry

	scans          *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	clients        prometheus.Gauge
	connections    prometheus.Gauge
	dropped        prometheus.Counter
	mutations      *prometheus.CounterVec
	ticks          *prometheus.CounterVec
	watcherEnabled prometheus.Gauge
}

// New creates the collectors in a fresh registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "scans_total",
			Help:      "Graph scans by result (ok, timeout, server_down, error).",
		}, []string{"result"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a full graph scan.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "clients",
			Help:      "Clients in the most recent snapshot.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "connections",
			Help:      "Connections in the most recent snapshot.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "dropped_connections_total",
			Help:      "Listed connections discarded because an endpoint did not resolve.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "mutations_total",
			Help:      "Connect and disconnect calls by operation and result.",
		}, []string{"operation", "result"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "ticks_total",
			Help:      "Reconciliation ticks by outcome.",
		}, []string{"outcome"}),
		watcherEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "enabled",
			Help:      "1 while reconciliation is enabled.",
		}),
	}
	m.registry.MustRegister(
		m.scans, m.scanDuration, m.clients, m.connections, m.dropped,
		m.mutations, m.ticks, m.watcherEnabled,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Result labels.
const (
	ResultOK         = "ok"
	ResultTimeout    = "timeout"
	ResultServerDown = "server_down"
	ResultError      = "error"
)

// Result maps an error onto a result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, jack.ErrTimeout):
		return ResultTimeout
	case errors.Is(err, jack.ErrServerDown):
		return ResultServerDown
	default:
		return ResultError
	}
}

// ObserveScan records one scan.
func (m *Metrics) ObserveScan(elapsed time.Duration, snapshot *jack.GraphSnapshot, err error) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(Result(err)).Inc()
	m.scanDuration.Observe(elapsed.Seconds())
	if snapshot != nil {
		m.clients.Set(float64(len(snapshot.Clients)))
		m.connections.Set(float64(len(snapshot.Connections)))
		m.dropped.Add(float64(len(snapshot.Dropped)))
	}
}

// CountMutation records one connect or disconnect call.
func (m *Metrics) CountMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, Result(err)).Inc()
}

// CountTick records one reconciliation tick outcome.
func (m *Metrics) CountTick(outcome string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
}

// SetWatcherEnabled records the watcher toggle.
func (m *Metrics) SetWatcherEnabled(enabled bool) {
	if m == nil {
		return
	}
	if enabled {
		m.watcherEnabled.Set(1)
	} else {
		m.watcherEnabled.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on address until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, address string, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening for metrics on %s: %w", address, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownContext)
	}()

	logger.Info("serving metrics", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics: %w", err)
	}
	return nil
}
