package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_overlay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_overlay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_overlay_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Codec runtime metrics
var (
	RuntimeStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_overlay_runtime_status",
			Help: "Codec runtime status (1 for the current state, 0 otherwise)",
		},
		[]string{"state"}, // "loading", "ready", "failed"
	)

	RuntimeLoadDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_overlay_runtime_load_duration_seconds",
			Help: "Duration of the codec runtime load in seconds",
		},
	)

	RuntimeAssetBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_overlay_runtime_asset_bytes",
			Help: "Size of each fetched codec runtime asset in bytes",
		},
		[]string{"asset"},
	)

	EngineCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_overlay_engine_commands_total",
			Help: "Total number of codec engine commands by status",
		},
		[]string{"engine", "status"},
	)

	EngineCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_overlay_engine_command_duration_seconds",
			Help:    "Codec engine command duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"engine"},
	)
)

// Overlay metrics
var (
	OverlayRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_overlay_runs_total",
			Help: "Total number of overlay runs by outcome",
		},
		[]string{"outcome"}, // "success", "failed", "rejected"
	)

	OverlayRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_overlay_run_duration_seconds",
			Help:    "Duration of an overlay run from input write to published result",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	OverlayOutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_overlay_output_bytes",
			Help:    "Size of produced output videos in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
		},
	)

	FileSelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_overlay_file_selections_total",
			Help: "Total number of file selections by status",
		},
		[]string{"status"}, // "accepted", "rejected"
	)
)

// Session metrics
var (
	LiveResults = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_overlay_live_results",
			Help: "Number of session-scoped result addresses currently published",
		},
	)

	LiveResultBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_overlay_live_result_bytes",
			Help: "Bytes held by published result videos",
		},
	)

	SelectedFileBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_overlay_selected_file_bytes",
			Help: "Size of the currently selected source video in bytes",
		},
	)

	ScratchBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_overlay_engine_scratch_bytes",
			Help: "Bytes held in the codec engine's private virtual filesystem",
		},
	)
)

// SetRuntimeState marks state as the current runtime status.
func SetRuntimeState(state string) {
	for _, s := range []string{"loading", "ready", "failed"} {
		v := 0.0
		if s == state {
			v = 1
		}
		RuntimeStatus.WithLabelValues(s).Set(v)
	}
}
