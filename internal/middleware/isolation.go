package middleware

import "net/http"

// Cross-origin isolation header names.
const (
	HeaderCOOP = "Cross-Origin-Opener-Policy"
	HeaderCOEP = "Cross-Origin-Embedder-Policy"
)

// CrossOriginIsolation sets Cross-Origin-Opener-Policy: same-origin and the
// given Cross-Origin-Embedder-Policy on every response, so the page can use
// SharedArrayBuffer. An empty coep means credentialless.
func CrossOriginIsolation(coep string) func(http.Handler) http.Handler {
	if coep == "" {
		coep = "credentialless"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set(HeaderCOOP, "same-origin")
			h.Set(HeaderCOEP, coep)
			next.ServeHTTP(w, r)
		})
	}
}
