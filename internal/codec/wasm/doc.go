// Package wasm runs a WASI build of ffmpeg inside wazero.
//
// The engine is loaded from two assets: the compiled binary
// (ffmpeg-core.wasm) and a small JSON glue descriptor (ffmpeg-core.json)
// naming the program, extra arguments, environment and memory limit. The
// binary is compiled once; every Exec instantiates a fresh guest with its
// own argv, so each command runs to completion the way a WASI command does.
//
// The guest sees a private scratch directory mounted at "/" as its whole
// filesystem. WriteFile and ReadFile move buffers in and out of it.
package wasm
