package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"video-overlay/internal/logging"
)

// responseWriter records the status and body size for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingConfig selects which requests reach the access log.
type LoggingConfig struct {
	// SkipPaths are path prefixes never logged.
	SkipPaths []string
	// StaticPaths are the page and codec runtime files, logged only with
	// LogStaticFiles.
	StaticPaths map[string]bool
	// HealthPaths are the probe endpoints, logged only with LogHealthChecks.
	HealthPaths     map[string]bool
	LogStaticFiles  bool
	LogHealthChecks bool
}

// DefaultLoggingConfig logs the session API and result downloads only.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		StaticPaths: map[string]bool{
			"/":                 true,
			"/index.html":       true,
			"/app.js":           true,
			"/style.css":        true,
			"/favicon.ico":      true,
			"/ffmpeg-core.wasm": true,
			"/ffmpeg-core.json": true,
		},
		HealthPaths: map[string]bool{
			"/healthz": true,
			"/livez":   true,
			"/readyz":  true,
		},
	}
}

// w3cFields lists the fields of every request line. cs-bytes is the
// request body size, which for uploads is the source video.
const w3cFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status cs-bytes sc-bytes time-taken sc(Content-Type) cs(User-Agent)"

// Logger returns access log middleware writing W3C Extended Log Format
// lines through the logging package.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	logging.Info("#Software: VideoOverlay/1.0")
	logging.Info("#Fields: %s", w3cFields)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			logging.Info("%s", accessLine(r, wrapped, time.Since(start)))
		})
	}
}

func (c LoggingConfig) skip(path string) bool {
	for _, p := range c.SkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	if !c.LogHealthChecks && c.HealthPaths[path] {
		return true
	}
	return !c.LogStaticFiles && c.StaticPaths[path]
}

// accessLine formats one request. Every client-supplied value is sanitized.
func accessLine(r *http.Request, rw *responseWriter, duration time.Duration) string {
	now := time.Now().UTC()

	requestBytes := "-"
	if r.ContentLength >= 0 {
		requestBytes = strconv.FormatInt(r.ContentLength, 10)
	}

	return fmt.Sprintf("%s %s %s %s %s %s %d %s %d %d %s %s",
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		sanitizeLogField(getClientIP(r)),
		sanitizeLogField(r.Method),
		orDash(sanitizeLogField(r.URL.Path)),
		orDash(sanitizeLogField(r.URL.RawQuery)),
		rw.statusCode,
		requestBytes,
		rw.bytesWritten,
		duration.Milliseconds(),
		orDash(escapeW3CField(rw.Header().Get("Content-Type"))),
		orDash(escapeW3CField(sanitizeLogField(r.Header.Get("User-Agent")))),
	)
}

// sanitizeLogField blanks line breaks and drops other control characters
// (tab excepted) so a field cannot forge lines or terminal escapes.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r < 0x20 && r != '\t':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// getClientIP returns the peer address. The server binds to loopback by
// default and sits behind no proxy, so forwarding headers are not trusted.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// escapeW3CField quotes values containing spaces, tabs or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
