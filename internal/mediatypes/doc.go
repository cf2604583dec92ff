// Package mediatypes provides MIME type helpers shared by the file selection
// path and the HTTP surface.
//
// This package is a dependency-free foundation that can be imported by other
// packages without creating import cycles.
//
// # Declared Types
//
// A selected file's declared type is taken as the browser sent it in the
// multipart part header. The file name is never consulted, so a missing or
// generic type is rejected:
//
//	if !mediatypes.IsVideo(header.Get("Content-Type")) {
//	    // reject
//	}
//
// # Runtime Assets
//
// The codec runtime assets are served and fetched with fixed content types,
// see [WASM] and [JSON]. Results are always [MP4].
package mediatypes
