package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"video-overlay/internal/logging"
	"video-overlay/internal/overlay"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to a temp file.
const multipartMemory = 32 << 20

// maxCaptionBody bounds the caption request body.
const maxCaptionBody = 64 << 10

// GetState returns the current session state.
func (h *Handlers) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, h.session.State())
}

// Events streams the session state as Server-Sent Events. Each change is an
// "state" event carrying the JSON snapshot.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	states, cancel := h.session.Subscribe()
	defer cancel()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closing:
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case s, ok := <-states:
			if !ok {
				return
			}
			data, err := json.Marshal(s)
			if err != nil {
				logging.Error("failed to encode state event: %v", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			logging.Debug("event stream flush failed: %v", err)
			return
		}
	}
}

// SelectFile accepts a multipart upload in the "file" field.
func (h *Handlers) SelectFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory/32)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, fmt.Sprintf("File exceeds the %d MB limit", h.maxUpload>>20), http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Warn("failed to remove upload temp files: %v", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		writeJSONError(w, fmt.Sprintf("File exceeds the %d MB limit", h.maxUpload>>20), http.StatusRequestEntityTooLarge)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	asset := overlay.MediaAsset{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}

	switch err := h.session.SelectFile(asset); {
	case err == nil:
		writeJSONStatus(w, http.StatusOK, h.session.State())
	case errors.Is(err, overlay.ErrInvalidFileType):
		writeJSONStatus(w, http.StatusUnsupportedMediaType, h.session.State())
	case errors.Is(err, overlay.ErrBusy):
		writeJSONStatus(w, http.StatusConflict, h.session.State())
	default:
		logging.Error("file selection failed: %v", err)
		writeJSONError(w, "File selection failed", http.StatusInternalServerError)
	}
}

type captionRequest struct {
	Text string `json:"text"`
}

// SetCaption updates the caption from a JSON body {"text": "..."}.
func (h *Handlers) SetCaption(w http.ResponseWriter, r *http.Request) {
	var req captionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCaptionBody)).Decode(&req); err != nil {
		writeJSONError(w, "Invalid caption request", http.StatusBadRequest)
		return
	}

	h.session.SetCaption(req.Text)
	writeJSONStatus(w, http.StatusOK, h.session.State())
}

// StartOverlay starts an overlay run. It answers 202 once the run is
// underway; progress and the result arrive through state updates.
func (h *Handlers) StartOverlay(w http.ResponseWriter, r *http.Request) {
	switch err := h.session.Start(r.Context()); {
	case err == nil:
		writeJSONStatus(w, http.StatusAccepted, h.session.State())
	case errors.Is(err, overlay.ErrBusy):
		writeJSONStatus(w, http.StatusConflict, h.session.State())
	case errors.Is(err, overlay.ErrPrecondition):
		writeJSONStatus(w, http.StatusUnprocessableEntity, h.session.State())
	default:
		logging.Error("overlay start failed: %v", err)
		writeJSONError(w, "Failed to start processing", http.StatusInternalServerError)
	}
}
