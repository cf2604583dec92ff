package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"video-overlay/internal/logging"
	"video-overlay/internal/metrics"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(nil) })
	return &buf
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func TestNewResponseWriter(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected default status code 200, got %d", rw.statusCode)
	}
	if rw.bytesWritten != 0 {
		t.Errorf("Expected bytesWritten to be 0, got %d", rw.bytesWritten)
	}
	if rw.wroteHeader {
		t.Error("Expected wroteHeader to be false initially")
	}
}

func TestResponseWriterWriteHeader(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("Expected status code 404, got %d", rw.statusCode)
	}
}

func TestResponseWriterWrite(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	data := []byte("test data")
	n, err := rw.Write(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != len(data) || rw.bytesWritten != int64(len(data)) {
		t.Errorf("wrote %d, counted %d, want %d", n, rw.bytesWritten, len(data))
	}
	if !rw.wroteHeader {
		t.Error("Expected wroteHeader to be true after Write")
	}
}

func TestResponseWritersUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()

	if newResponseWriter(rec).Unwrap() != rec {
		t.Error("responseWriter.Unwrap() should return the wrapped writer")
	}
	if newMetricsResponseWriter(rec).Unwrap() != rec {
		t.Error("metricsResponseWriter.Unwrap() should return the wrapped writer")
	}
}

func TestDefaultLoggingConfig(t *testing.T) {
	config := DefaultLoggingConfig()

	for _, path := range []string{"/", "/app.js", "/ffmpeg-core.wasm", "/ffmpeg-core.json"} {
		if !config.StaticPaths[path] {
			t.Errorf("%s should be a static path", path)
		}
	}
	for _, path := range []string{"/api/state", "/api/file", "/results/x"} {
		if config.StaticPaths[path] || config.HealthPaths[path] {
			t.Errorf("%s should be logged by default", path)
		}
	}
	if config.LogStaticFiles || config.LogHealthChecks {
		t.Error("static files and health checks should not be logged by default")
	}
}

func TestLoggerMiddleware(t *testing.T) {
	withStatic := DefaultLoggingConfig()
	withStatic.LogStaticFiles = true
	withHealth := DefaultLoggingConfig()
	withHealth.LogHealthChecks = true

	tests := []struct {
		name          string
		path          string
		config        LoggingConfig
		expectLogging bool
	}{
		{"Logs session API", "/api/state", DefaultLoggingConfig(), true},
		{"Logs result downloads", "/results/abc", DefaultLoggingConfig(), true},
		{"Skips codec assets", "/ffmpeg-core.wasm", DefaultLoggingConfig(), false},
		{"Skips page script", "/app.js", DefaultLoggingConfig(), false},
		{"Logs static files when enabled", "/app.js", withStatic, true},
		{"Skips health checks when disabled", "/livez", DefaultLoggingConfig(), false},
		{"Logs health checks when enabled", "/healthz", withHealth, true},
		{"Skips configured paths", "/api/events", LoggingConfig{SkipPaths: []string{"/api/events"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Logger(tt.config)(http.HandlerFunc(okHandler))
			buf := captureLogs(t)

			req := httptest.NewRequest(http.MethodGet, tt.path+"?x=1", http.NoBody)
			req.Header.Set("User-Agent", "Mozilla/5.0 (X11)")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			logged := strings.Contains(buf.String(), " GET "+tt.path+" x=1 200 0 2 ")
			if logged != tt.expectLogging {
				t.Errorf("logged = %v, want %v; output:\n%s", logged, tt.expectLogging, buf.String())
			}
			if logged && !strings.Contains(buf.String(), `"Mozilla/5.0 (X11)"`) {
				t.Errorf("user agent not quoted: %s", buf.String())
			}
		})
	}
}

func TestLoggerRecordsUploadSize(t *testing.T) {
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(okHandler))
	buf := captureLogs(t)

	req := httptest.NewRequest(http.MethodPost, "/api/file", strings.NewReader("0123456789"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), " POST /api/file - 200 10 2 ") {
		t.Errorf("missing request size in log line:\n%s", buf.String())
	}
}

func TestLoggerWritesDirectives(t *testing.T) {
	buf := captureLogs(t)
	Logger(DefaultLoggingConfig())

	out := buf.String()
	if !strings.Contains(out, "#Software: VideoOverlay/1.0") || !strings.Contains(out, "#Fields: date time") {
		t.Errorf("missing W3C directives:\n%s", out)
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"cr\rlf", "cr lf"},
		{"nul\x00byte", "nulbyte"},
		{"ansi\x1b[31mred", "ansi[31mred"},
		{"tab\tok", "tab\tok"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "127.0.0.1:5000", "127.0.0.1"},
		{"ipv6 remote addr", nil, "[::1]:5000", "::1"},
		{"forwarded for is not trusted", map[string]string{"X-Forwarded-For": "10.0.0.1"}, "127.0.0.1:5000", "127.0.0.1"},
		{"real ip is not trusted", map[string]string{"X-Real-IP": "10.0.0.9"}, "127.0.0.1:5000", "127.0.0.1"},
		{"no port", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCrossOriginIsolation(t *testing.T) {
	tests := []struct {
		name     string
		coep     string
		wantCOEP string
	}{
		{"default", "", "credentialless"},
		{"credentialless", "credentialless", "credentialless"},
		{"require-corp", "require-corp", "require-corp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := mux.NewRouter()
			router.HandleFunc("/", okHandler)
			handler := CrossOriginIsolation(tt.coep)(router)

			for _, path := range []string{"/", "/results/unknown"} {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))

				if got := w.Header().Get(HeaderCOOP); got != "same-origin" {
					t.Errorf("%s: %s = %q", path, HeaderCOOP, got)
				}
				if got := w.Header().Get(HeaderCOEP); got != tt.wantCOEP {
					t.Errorf("%s: %s = %q, want %q", path, HeaderCOEP, got, tt.wantCOEP)
				}
			}
		})
	}
}

func TestCrossOriginIsolationOnErrorResponses(t *testing.T) {
	handler := CrossOriginIsolation("require-corp")(http.NotFoundHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get(HeaderCOOP) != "same-origin" || w.Header().Get(HeaderCOEP) != "require-corp" {
		t.Errorf("headers = %v", w.Header())
	}
}

func TestDefaultMetricsConfig(t *testing.T) {
	config := DefaultMetricsConfig()
	for _, path := range []string{"/metrics", "/healthz", "/livez", "/readyz"} {
		found := false
		for _, skip := range config.SkipPaths {
			if skip == path {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected %s in SkipPaths", path)
		}
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/results/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/results/{id}", "404"))
	for _, id := range []string{"a", "b", "c"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/results/"+id, http.NoBody))
	}
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/results/{id}", "404"))

	if after-before != 3 {
		t.Errorf("counter grew by %v, want 3", after-before)
	}
}

func TestMetricsMiddlewareSkipPaths(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(okHandler))

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200"))

	if after != before {
		t.Error("skipped path should not be counted")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/api/state", "/api/state"},
		{"/results/abc", "/results/abc"},
		{"/a/b/c/d", "/a/b/{path}"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/ffmpeg-core.wasm", http.NoBody)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
