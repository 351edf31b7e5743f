// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes copy pool activity as prometheus metrics.
package metrics

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/walteh/extsort/pkg/copier"
	"gitlab.com/tozd/go/errors"
)

// 📈 Collector observes a copier.Pool
type Collector struct {
	registry *prometheus.Registry

	copyTotal    *prometheus.CounterVec
	copyDuration *prometheus.HistogramVec
	copyBytes    *prometheus.CounterVec
	inFlight     prometheus.Gauge

	current atomic.Int64
	peak    atomic.Int64
}

var _ copier.Observer = (*Collector)(nil)

// 🏭 NewCollector creates a collector on its own registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	copyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extsort",
			Subsystem: "copy",
			Name:      "total",
			Help:      "Total copy tasks by status and category.",
		},
		[]string{"status", "category"},
	)
	copyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extsort",
			Subsystem: "copy",
			Name:      "duration_seconds",
			Help:      "Copy task duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	copyBytes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extsort",
			Subsystem: "copy",
			Name:      "bytes_total",
			Help:      "Bytes written by successful copies by category.",
		},
		[]string{"category"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "extsort",
			Subsystem: "copy",
			Name:      "in_flight",
			Help:      "Number of copy tasks currently doing I/O.",
		},
	)

	c := &Collector{
		registry:     registry,
		copyTotal:    copyTotal,
		copyDuration: copyDuration,
		copyBytes:    copyBytes,
		inFlight:     inFlight,
	}

	peakInFlight := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "extsort",
			Subsystem: "copy",
			Name:      "in_flight_peak",
			Help:      "Highest number of simultaneous copy tasks seen.",
		},
		func() float64 { return float64(c.peak.Load()) },
	)

	registry.MustRegister(copyTotal, copyDuration, copyBytes, inFlight, peakInFlight)

	return c
}

// Registry returns the registry the metrics live on
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// 🌐 Serve exposes Handler on addr at /metrics until the returned stop func is called.
// The listener is bound before Serve returns, so ":0" picks a free port.
func (c *Collector) Serve(ctx context.Context, addr string) (net.Addr, func(context.Context) error, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, errors.Errorf("listening for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ln)
	}()

	stop := func(ctx context.Context) error {
		if err := srv.Shutdown(ctx); err != nil {
			return errors.Errorf("stopping metrics server: %w", err)
		}
		if err := <-done; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Errorf("serving metrics: %w", err)
		}
		return nil
	}

	return ln.Addr(), stop, nil
}

// 💾 WriteTextfile writes the metrics for node_exporter's textfile collector
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Peak returns the highest in-flight count observed
func (c *Collector) Peak() int64 {
	return c.peak.Load()
}

func (c *Collector) TaskStarted(copier.Task) {
	c.inFlight.Inc()
	cur := c.current.Add(1)
	for {
		old := c.peak.Load()
		if cur <= old {
			return
		}
		if c.peak.CompareAndSwap(old, cur) {
			return
		}
	}
}

func (c *Collector) TaskFinished(outcome copier.Outcome) {
	c.inFlight.Dec()
	c.current.Add(-1)

	status := outcome.Status.String()
	category := string(outcome.Task.Category)

	c.copyTotal.WithLabelValues(status, category).Inc()
	c.copyDuration.WithLabelValues(status).Observe(outcome.Duration.Seconds())
	if outcome.OK() {
		c.copyBytes.WithLabelValues(category).Add(float64(outcome.Bytes))
	}
}
