// Package blobstore hands out session-scoped addresses for in-memory result
// videos.
//
// Each published blob gets a random address under a fixed prefix. The
// address stays valid until it is revoked or the store is closed, after
// which requests for it return 404. Blobs are never written to disk.
package blobstore
