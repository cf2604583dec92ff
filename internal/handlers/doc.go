// Package handlers provides the HTTP surface of the video overlay page.
//
// It includes handlers for:
//   - The embedded single page and its static files
//   - Session state as JSON and as a Server-Sent Events stream
//   - File selection, caption updates and starting an overlay run
//   - The codec runtime asset endpoints
//   - Health checks and version information
//
// Result videos are served by the blob store, not by this package.
package handlers
