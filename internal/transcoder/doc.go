// Package transcoder runs the codec engine as a system FFmpeg binary.
//
// It implements codec.Runtime for hosts where the WebAssembly build is not
// available (CODEC_ENGINE=native). It needs no fetched assets; Load checks
// that the binary runs and creates the private scratch directory that plays
// the role of the engine's virtual filesystem.
//
// FFmpeg must be installed and available in the system PATH, or configured
// with FFMPEG_PATH.
package transcoder
