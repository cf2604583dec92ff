// Package codec loads the media codec engine and exposes it as a capability
// handle to the rest of the tool.
//
// # Runtime
//
// A [Runtime] is an engine that decodes, filters and re-encodes media given
// a command-line style argument list. It owns a private virtual filesystem:
// callers write input buffers into it with WriteFile, run a command with Exec
// and read the produced bytes back with ReadFile. Two implementations exist:
//
//   - [video-overlay/internal/codec/wasm]: a WASI build of ffmpeg running
//     inside wazero
//   - [video-overlay/internal/transcoder]: a system ffmpeg binary
//
// # Loader
//
// [Loader] initializes a Runtime exactly once. It fetches the assets the
// runtime names (for the wasm engine, the executable binary and its glue
// descriptor) from an [AssetSource], holds them in memory, and hands them to
// Runtime.Load. Progress is published as a [Status]:
//
//	loading ──► ready
//	    └─────► failed   (terminal until the process is restarted)
//
// A caller that arrives while the load is running waits for it and gets the
// same outcome. There is no retry. A failed load is reported with a fixed user-facing
// message and the full error chain as diagnostic detail.
//
// The Loader itself satisfies the engine interface the overlay controller
// depends on, so it is passed around as the codec runtime handle: file and
// exec calls are forwarded to the runtime once it is ready and fail with
// [ErrNotReady] before that.
package codec
