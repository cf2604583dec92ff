package handlers

import (
	"net/http"
)

// Page serves index.html at / and the page's static files.
func (h *Handlers) Page() http.Handler {
	files := http.FileServerFS(h.page)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	})
}
