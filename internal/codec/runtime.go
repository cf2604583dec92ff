package codec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotReady is returned by engine calls made before the runtime finished
// loading, or after it failed to load.
var ErrNotReady = errors.New("codec runtime not ready")

// ErrInvalidName is returned when a virtual filesystem name is not a plain
// file name.
var ErrInvalidName = errors.New("invalid virtual file name")

// Runtime is a media codec engine with a private virtual filesystem.
type Runtime interface {
	// Name identifies the engine in logs and metrics ("wasm", "native").
	Name() string
	// Assets lists the resources Load expects, in order.
	Assets() []AssetSpec
	// Load initializes the engine from fetched assets.
	Load(ctx context.Context, assets []Asset) error
	// WriteFile stores data under name in the virtual filesystem.
	WriteFile(ctx context.Context, name string, data []byte) error
	// Exec runs one command against the virtual filesystem.
	Exec(ctx context.Context, args []string) error
	// ReadFile returns the contents of name from the virtual filesystem.
	ReadFile(ctx context.Context, name string) ([]byte, error)
	// SetLogSink registers a callback receiving the engine's log lines.
	SetLogSink(sink func(line string))
	// Close releases the engine and its virtual filesystem.
	Close(ctx context.Context) error
}

// ScratchSizer is implemented by runtimes that can report how many bytes
// their virtual filesystem currently holds.
type ScratchSizer interface {
	ScratchBytes() int64
}

// Versioner is implemented by runtimes that can name the engine build they
// loaded.
type Versioner interface {
	Version() string
}

// ExecError is returned by Runtime.Exec when the engine ran but exited with
// a non-zero status.
type ExecError struct {
	Code int
	// Log holds the last lines the engine printed before exiting.
	Log []string
}

func (e *ExecError) Error() string {
	if len(e.Log) == 0 {
		return fmt.Sprintf("codec engine exited with status %d", e.Code)
	}
	return fmt.Sprintf("codec engine exited with status %d:\n%s", e.Code, strings.Join(e.Log, "\n"))
}

// ScratchPath resolves a virtual file name inside root. Only plain file
// names are accepted.
func ScratchPath(root, name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(root, name), nil
}

// DirSize returns the total size of regular files below path.
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
