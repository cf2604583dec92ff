package handlers

import (
	"io/fs"
	"sync"
	"time"

	"video-overlay/internal/codec"
	"video-overlay/internal/overlay"
	"video-overlay/internal/startup"
)

// RuntimeStatus reports the codec runtime state.
type RuntimeStatus interface {
	Status() codec.Status
	Engine() string
	EngineVersion() string
}

// Handlers serves one overlay session.
type Handlers struct {
	session   *overlay.Controller
	runtime   RuntimeStatus
	assets    codec.DirSource
	page      fs.FS
	maxUpload int64
	startTime time.Time

	// heartbeat is the interval of SSE keep-alive comments.
	heartbeat time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

// New creates Handlers for session. assets serves the codec runtime files
// from a local directory and page holds index.html and its static files.
func New(session *overlay.Controller, runtime RuntimeStatus, assets codec.DirSource, page fs.FS, config *startup.Config) *Handlers {
	return &Handlers{
		session:   session,
		runtime:   runtime,
		assets:    assets,
		page:      page,
		maxUpload: config.MaxUploadBytes,
		startTime: time.Now(),
		heartbeat: 15 * time.Second,
		closing:   make(chan struct{}),
	}
}

// Shutdown ends open event streams so the server can drain.
func (h *Handlers) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
}
