// Package middleware provides HTTP middleware for the video overlay server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Cross-origin isolation headers (COOP/COEP) on every response
//   - Prometheus request metrics keyed by route template
//   - Configurable filtering for static files and health checks
package middleware
