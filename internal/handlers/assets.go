package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"video-overlay/internal/codec"
	"video-overlay/internal/logging"
	"video-overlay/internal/mediatypes"
)

// runtimeAssets are the files served at the page root for the codec runtime.
var runtimeAssets = map[string]codec.AssetSpec{
	codec.CoreWasm: {Name: codec.CoreWasm, ContentType: mediatypes.WASM},
	codec.CoreGlue: {Name: codec.CoreGlue, ContentType: mediatypes.JSON},
}

// RuntimeAsset serves ffmpeg-core.wasm or ffmpeg-core.json with its
// content type.
func (h *Handlers) RuntimeAsset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["asset"]
	spec, ok := runtimeAssets[name]
	if !ok || h.assets.FS == nil {
		http.NotFound(w, r)
		return
	}

	asset, err := h.assets.Fetch(r.Context(), spec)
	if err != nil {
		logging.Debug("runtime asset %s unavailable: %v", name, err)
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", spec.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(asset.Data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(asset.Data); err != nil {
		logging.Debug("runtime asset %s write failed: %v", name, err)
	}
}
