// Package overlay implements the caption burn-in session.
//
// A Controller owns the single editing session: the selected source video,
// the caption text, the runtime status it mirrors from the codec loader, and
// at most one live result. Transitions are serialized; the presentation layer
// reads immutable State snapshots and subscribes to changes instead of
// mutating anything itself.
//
// The drawtext filter argument is built by EscapeText. FFmpeg tokenizes a
// filter description twice (once splitting the filtergraph, once splitting
// the filter's key=value options), and the escaped caption survives both
// passes byte for byte.
package overlay
