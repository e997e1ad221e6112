// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of inbound HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gateway_http_request_duration_seconds",
			Help: "Duration of inbound HTTP request handling in seconds",
		},
		[]string{"method", "path"},
	)

	RequestsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_routed_total",
			Help: "Total number of orchestrated requests by route and decision",
		},
		[]string{"route", "decision"},
	)

	ClassifierFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_classifier_fallbacks_total",
			Help: "Total number of intent resolutions degraded to the fallback policy",
		},
		[]string{"reason"},
	)

	DownstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_downstream_calls_total",
			Help: "Total number of downstream collaborator calls by target and outcome",
		},
		[]string{"target", "outcome"},
	)

	DownstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gateway_downstream_duration_seconds",
			Help: "Duration of downstream collaborator calls in seconds",
		},
		[]string{"target"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_sessions_active",
			Help: "Number of live sessions held by the session store",
		},
	)
)
