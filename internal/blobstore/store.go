package blobstore

import (
	"bytes"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"video-overlay/internal/logging"
	"video-overlay/internal/metrics"
)

// DefaultPrefix is the URL path under which blobs are served.
const DefaultPrefix = "/results/"

// Blob is a published in-memory file.
type Blob struct {
	ID       string
	Name     string
	MIMEType string
	Data     []byte
	Created  time.Time
}

// Store holds the live blobs of one session.
type Store struct {
	prefix string

	mu    sync.RWMutex
	blobs map[string]*Blob
}

// New returns an empty Store serving under prefix.
func New(prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{prefix: prefix, blobs: make(map[string]*Blob)}
}

// Publish stores data and returns its address.
func (s *Store) Publish(name, mimeType string, data []byte) string {
	b := &Blob{
		ID:       uuid.NewString(),
		Name:     name,
		MIMEType: mimeType,
		Data:     data,
		Created:  time.Now(),
	}

	s.mu.Lock()
	s.blobs[b.ID] = b
	n := len(s.blobs)
	s.mu.Unlock()

	metrics.LiveResults.Set(float64(n))
	logging.Debug("Published %s (%d bytes) as %s", name, len(data), b.ID)
	return s.prefix + b.ID
}

// Revoke releases the blob at url. It reports whether the address was live.
func (s *Store) Revoke(url string) bool {
	id := strings.TrimPrefix(url, s.prefix)

	s.mu.Lock()
	_, ok := s.blobs[id]
	delete(s.blobs, id)
	n := len(s.blobs)
	s.mu.Unlock()

	if ok {
		metrics.LiveResults.Set(float64(n))
		logging.Debug("Revoked %s", id)
	}
	return ok
}

// Get returns the live blob with the given id.
func (s *Store) Get(id string) (*Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	return b, ok
}

// Len returns the number of live blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Bytes returns the total size of live blobs.
func (s *Store) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, b := range s.blobs {
		n += int64(len(b.Data))
	}
	return n
}

// Close revokes every blob.
func (s *Store) Close() {
	s.mu.Lock()
	s.blobs = make(map[string]*Blob)
	s.mu.Unlock()
	metrics.LiveResults.Set(0)
}

// ServeHTTP serves a live blob with range support. With ?download=1 the
// response asks the browser to save it under the blob's name.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		id = path.Base(r.URL.Path)
	}

	b, ok := s.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", b.MIMEType)
	w.Header().Set("Cache-Control", "private, no-store")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": b.Name}))
	}

	http.ServeContent(w, r, b.Name, b.Created, bytes.NewReader(b.Data))
}
