// Command video-overlay burns a text caption into a short video.
//
// It serves a single page on a loopback address. The user drops a video,
// types a caption and presses the button; the video is processed by an
// FFmpeg engine running inside the process and the result can be played and
// downloaded as processed-video.mp4. Nothing is uploaded anywhere else and
// nothing is kept after the process exits.
//
// # Application Lifecycle
//
//  1. Configuration Loading: .env file and environment variables, then the
//     main listener is bound
//  2. Codec Runtime: the engine (WebAssembly via wazero, or a system ffmpeg)
//     loads in the background; the page shows a loading message until ready
//  3. Session: one overlay controller and its result store
//  4. HTTP Server Setup: routes, middleware and the optional metrics server
//  5. Graceful Shutdown: SIGINT/SIGTERM stop the servers, revoke results and
//     close the engine
//
// # HTTP Server
//
// The application runs up to two HTTP servers:
//
//  1. Main Server (default 127.0.0.1:8080):
//     - The page, its state API and event stream
//     - Result videos under /results/
//     - Codec runtime assets (/ffmpeg-core.wasm, /ffmpeg-core.json)
//     - Health checks (/healthz, /livez, /readyz) and /version
//
//  2. Metrics Server (default 127.0.0.1:9090, METRICS_ENABLED=true):
//     - Prometheus metrics endpoint (/metrics)
//
// # Runtime Assets
//
// /ffmpeg-core.wasm is served as application/wasm and /ffmpeg-core.json as
// application/json. The engine runs on the server, so its glue is a JSON
// descriptor for the wazero host (program name, arguments, environment,
// memory limit) rather than a browser script. Both are always read from
// CODEC_ASSETS_DIR. The page never requests them; they are fetched only by
// the loader when CODEC_ASSETS_URL points at this server (for example "/").
//
// Every response from the main server carries Cross-Origin-Opener-Policy and
// Cross-Origin-Embedder-Policy headers.
//
// See package startup for the environment variables.
package main
