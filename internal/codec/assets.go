package codec

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"time"

	"video-overlay/internal/mediatypes"
)

// Runtime asset names served by the host and fetched by the loader.
const (
	CoreWasm = "ffmpeg-core.wasm"
	CoreGlue = "ffmpeg-core.json"
)

// maxAssetBytes bounds a single fetched asset.
const maxAssetBytes = 512 << 20

// AssetSpec names an asset and the content type it must be served with.
type AssetSpec struct {
	Name        string
	ContentType string
}

// Asset is a fetched, in-memory loadable resource.
type Asset struct {
	Name        string
	ContentType string
	Data        []byte
}

// AssetSource fetches runtime assets.
type AssetSource interface {
	Fetch(ctx context.Context, spec AssetSpec) (Asset, error)
}

// FindAsset returns the asset called name.
func FindAsset(assets []Asset, name string) (Asset, bool) {
	for _, a := range assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

// DirSource reads assets from a filesystem.
type DirSource struct {
	FS fs.FS
}

// NewDirSource returns a source reading from dir.
func NewDirSource(dir string) DirSource {
	return DirSource{FS: os.DirFS(dir)}
}

// Fetch implements AssetSource.
func (s DirSource) Fetch(_ context.Context, spec AssetSpec) (Asset, error) {
	data, err := fs.ReadFile(s.FS, spec.Name)
	if err != nil {
		return Asset{}, fmt.Errorf("read asset %s: %w", spec.Name, err)
	}
	return Asset{Name: spec.Name, ContentType: spec.ContentType, Data: data}, nil
}

// HTTPSource fetches assets relative to a same-origin base URL.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource returns a source fetching from baseURL.
func NewHTTPSource(baseURL string) HTTPSource {
	return HTTPSource{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// Fetch implements AssetSource.
func (s HTTPSource) Fetch(ctx context.Context, spec AssetSpec) (Asset, error) {
	u, err := url.JoinPath(s.BaseURL, spec.Name)
	if err != nil {
		return Asset{}, fmt.Errorf("asset url for %s: %w", spec.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Asset{}, err
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("fetch asset %s: %w", spec.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Asset{}, fmt.Errorf("fetch asset %s: unexpected status %s", spec.Name, resp.Status)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && spec.ContentType != "" {
		if got := mediatypes.Essence(ct); got != mediatypes.Essence(spec.ContentType) {
			return Asset{}, fmt.Errorf("fetch asset %s: content type %q, want %q", spec.Name, got, spec.ContentType)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return Asset{}, fmt.Errorf("read asset %s: %w", spec.Name, err)
	}
	if len(data) > maxAssetBytes {
		return Asset{}, fmt.Errorf("asset %s exceeds %d bytes", spec.Name, maxAssetBytes)
	}

	return Asset{Name: spec.Name, ContentType: spec.ContentType, Data: data}, nil
}
