package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	SetRuntimeState("loading")

	for _, asset := range []string{"ffmpeg-core.wasm", "ffmpeg-core.json"} {
		RuntimeAssetBytes.WithLabelValues(asset)
	}

	for _, engine := range []string{"wasm", "native"} {
		EngineCommandsTotal.WithLabelValues(engine, "success")
		EngineCommandsTotal.WithLabelValues(engine, "error")
		EngineCommandDuration.WithLabelValues(engine)
	}

	for _, outcome := range []string{"success", "failed", "rejected"} {
		OverlayRunsTotal.WithLabelValues(outcome)
	}

	for _, status := range []string{"accepted", "rejected"} {
		FileSelectionsTotal.WithLabelValues(status)
	}
}
