// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables via [LoadConfig]. A .env
// file (path from ENV_FILE, default ./.env) is loaded first; variables
// already set in the environment win. The following variables are supported:
//
//   - PORT: HTTP server port (default: 8080)
//   - BIND_ADDR: Listen address (default: 127.0.0.1)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: false)
//   - CODEC_ENGINE: wasm or native (default: wasm)
//   - CODEC_ASSETS_DIR: Directory holding ffmpeg-core.wasm and ffmpeg-core.json (default: ./assets)
//   - CODEC_ASSETS_URL: Fetch the codec assets from this base URL instead of the directory.
//     A path such as "/" fetches them from this server's own runtime endpoints
//   - FFMPEG_PATH: ffmpeg binary for the native engine (default: ffmpeg)
//   - COEP_MODE: credentialless or require-corp (default: credentialless)
//   - MAX_UPLOAD_MB: Largest accepted source video (default: 200)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log page and asset requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogCodecInit]: Codec engine choice and asset availability
//   - [LogRuntimeReady]: Outcome of the background runtime load
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup
