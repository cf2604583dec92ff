// Package metrics provides Prometheus instrumentation for the video overlay tool.
//
// All metrics are prefixed with "video_overlay_" and registered with the
// default registry through promauto.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Codec Runtime Metrics
//
//   - RuntimeStatus: One-hot gauge of loading/ready/failed
//   - RuntimeLoadDuration: Seconds spent fetching assets and initializing the engine
//   - RuntimeAssetBytes: Size of each fetched runtime asset
//   - EngineCommandsTotal / EngineCommandDuration: Engine invocations per engine
//
// ## Overlay Metrics
//
//   - OverlayRunsTotal: Runs by outcome (success, failed, rejected)
//   - OverlayRunDuration: End-to-end run duration
//   - OverlayOutputBytes: Output video sizes
//   - FileSelectionsTotal: Accepted and rejected selections
//
// ## Session Metrics
//
// Sampled by [Collector] from a [StatsProvider]:
//   - LiveResults: Published result addresses that have not been revoked
//   - SelectedFileBytes: Size of the selected source video
//   - ScratchBytes: Bytes in the engine's private virtual filesystem
//
// # Usage
//
// Call [InitializeMetrics] once at startup so every series exists from the
// first scrape, then expose promhttp.Handler() on the metrics listener.
package metrics
