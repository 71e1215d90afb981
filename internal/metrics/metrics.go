// Package metrics provides Prometheus instrumentation for backend traffic,
// streaming and voice activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal counts gateway calls by operation and HTTP status
	// ("error" when the request never completed).
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentchat_api_requests_total",
			Help: "Backend requests issued by the client",
		},
		[]string{"op", "status"},
	)

	// APIRequestDuration tracks gateway latency up to response headers.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentchat_api_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)

	// SSEEventsTotal counts dispatched stream events by type.
	SSEEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentchat_sse_events_total",
			Help: "Server-sent events dispatched to handlers",
		},
		[]string{"type"},
	)

	// SSEMalformedTotal counts data lines skipped because they were not valid JSON.
	SSEMalformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentchat_sse_malformed_total",
			Help: "Server-sent events skipped due to malformed payloads",
		},
	)

	// StreamsActive is 1 while an assistant response is streaming.
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentchat_streams_active",
			Help: "Streaming episodes currently in flight",
		},
	)

	// RecordingSeconds observes the length of finished recordings.
	RecordingSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentchat_recording_seconds",
			Help:    "Duration of completed voice recordings",
			Buckets: []float64{1, 5, 10, 30, 60, 100, 120},
		},
	)

	// PlaybacksTotal counts audio playbacks by trigger (manual, auto, voice_mode).
	PlaybacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentchat_playbacks_total",
			Help: "Audio playbacks started",
		},
		[]string{"trigger"},
	)
)
