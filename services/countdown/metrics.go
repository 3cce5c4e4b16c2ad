// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package countdown

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the countdown service.
//
// These complement the engine's OpenTelemetry instruments: the engine counts
// iterations, the service counts jobs, streams and history writes.
var (
	searchesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "countdown",
		Subsystem: "service",
		Name:      "searches_started_total",
		Help:      "Total searches accepted by the service",
	})

	searchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "countdown",
		Subsystem: "service",
		Name:      "searches_finished_total",
		Help:      "Total searches that reached a terminal state",
	}, []string{"state"})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "countdown",
		Subsystem: "service",
		Name:      "search_duration_seconds",
		Help:      "Wall time from start to terminal state",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"state"})

	searchDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "countdown",
		Subsystem: "service",
		Name:      "solution_depth",
		Help:      "Minimal depth of completed searches",
		Buckets:   prometheus.LinearBuckets(0, 1, 10),
	})

	activeSearches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "countdown",
		Subsystem: "service",
		Name:      "active_searches",
		Help:      "Searches currently running",
	})

	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "countdown",
		Subsystem: "service",
		Name:      "stream_clients",
		Help:      "Open websocket progress streams",
	})

	historyWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "countdown",
		Subsystem: "history",
		Name:      "writes_total",
		Help:      "History items written, by result",
	}, []string{"result"})
)
