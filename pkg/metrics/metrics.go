// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package metrics declares the render pipeline's Prometheus collectors:
// per-variant node execution duration, plugin dispatch outcomes, and
// frames rendered. Registered against the default registry so a host
// process can expose them however it serves /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NodeExecDuration tracks per-variant image-node execution time.
	NodeExecDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framegraph_node_exec_duration_seconds",
		Help:    "Image node exec() duration in seconds, by node variant.",
		Buckets: prometheus.DefBuckets,
	}, []string{"variant"})

	// PluginDispatchTotal counts plugin host action dispatches, by
	// action and outcome ("ok" or "error").
	PluginDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegraph_plugin_dispatch_total",
		Help: "Plugin host action dispatches, by action and outcome.",
	}, []string{"action", "outcome"})

	// FramesRendered counts frames for which the graph builder produced
	// and executed a root node.
	FramesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framegraph_frames_rendered_total",
		Help: "Total number of frames rendered.",
	})

	// MediaReadFailures counts non-fatal media I/O failures (§4.1
	// ReadFailed), by reader kind.
	MediaReadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegraph_media_read_failures_total",
		Help: "Non-fatal media read failures, by reader kind.",
	}, []string{"kind"})
)

// ObserveNodeExec records an image node's exec duration in seconds.
func ObserveNodeExec(variant string, seconds float64) {
	NodeExecDuration.WithLabelValues(variant).Observe(seconds)
}

// RecordPluginDispatch records a plugin action dispatch outcome.
func RecordPluginDispatch(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PluginDispatchTotal.WithLabelValues(action, outcome).Inc()
}
