// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's prometheus collectors. It has no methods:
// the controller uses the collectors directly, and only when
// Config.Metrics is non-nil, so callers that don't care about metrics
// leave Config.Metrics nil and skip NewMetrics entirely. A Metrics with
// nil collector fields is not safe to pass to the controller.
type Metrics struct {
	InFlightRequests prometheus.Gauge
	RequestDuration  prometheus.Histogram
	SessionExpiries  prometheus.Counter
}

// NewMetrics constructs and registers the engine's collectors under the
// given namespace/subsystem, mirroring the teacher's per-component
// metrics constructors (e.g. syncapi's notifier metrics).
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InFlightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "in_flight_requests",
			Help:      "Number of sliding-sync requests currently in flight (0 or 1).",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time taken for a single sliding-sync request/response cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		SessionExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_expiries_total",
			Help:      "Number of times the server reported the sliding-sync session had expired.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.InFlightRequests, m.RequestDuration, m.SessionExpiries)
	}
	return m
}
