package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"video-overlay/internal/codec"
	"video-overlay/internal/logging"
)

// logTailLines is how many FFmpeg stderr lines an ExecError keeps.
const logTailLines = 40

// baseArgs are passed before every command.
var baseArgs = []string{"-hide_banner", "-nostdin"}

// Transcoder runs FFmpeg commands inside a private scratch directory.
type Transcoder struct {
	ffmpegPath string
	version    string

	mu         sync.Mutex
	scratchDir string
	sink       func(string)

	processMu sync.Mutex
	process   *exec.Cmd
	execMu    sync.Mutex
}

// New creates a Transcoder for the given ffmpeg binary.
func New(ffmpegPath string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{ffmpegPath: ffmpegPath}
}

// Name implements codec.Runtime.
func (t *Transcoder) Name() string {
	return "native"
}

// Assets implements codec.Runtime. The native engine needs none.
func (t *Transcoder) Assets() []codec.AssetSpec {
	return nil
}

var _ codec.Versioner = (*Transcoder)(nil)

// Version returns the first line of `ffmpeg -version` once loaded.
func (t *Transcoder) Version() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// SetLogSink implements codec.Runtime.
func (t *Transcoder) SetLogSink(sink func(string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

// Load verifies the binary and creates the scratch directory.
func (t *Transcoder) Load(ctx context.Context, _ []codec.Asset) error {
	path, err := exec.LookPath(t.ffmpegPath)
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	output, err := exec.CommandContext(vctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}
	version := strings.TrimSpace(strings.SplitN(string(output), "\n", 2)[0])

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.scratchDir != "" {
		return nil
	}

	dir, err := os.MkdirTemp("", "video-overlay-scratch-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	t.ffmpegPath = path
	t.version = version
	t.scratchDir = dir
	logging.Debug("FFmpeg path: %s (%s), scratch: %s", path, version, dir)
	return nil
}

// WriteFile implements codec.Runtime.
func (t *Transcoder) WriteFile(_ context.Context, name string, data []byte) error {
	p, err := t.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

// ReadFile implements codec.Runtime.
func (t *Transcoder) ReadFile(_ context.Context, name string) ([]byte, error) {
	p, err := t.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// Exec runs ffmpeg with args in the scratch directory.
func (t *Transcoder) Exec(ctx context.Context, args []string) error {
	t.execMu.Lock()
	defer t.execMu.Unlock()

	t.mu.Lock()
	dir, sink, bin := t.scratchDir, t.sink, t.ffmpegPath
	t.mu.Unlock()

	if dir == "" {
		return codec.ErrNotReady
	}

	stderr := codec.NewLineWriter(sink, logTailLines)
	cmd := exec.CommandContext(ctx, bin, append(append([]string{}, baseArgs...), args...)...)
	cmd.Dir = dir
	cmd.Stdout = stderr
	cmd.Stderr = stderr

	// Track the process
	t.processMu.Lock()
	t.process = cmd
	t.processMu.Unlock()

	defer func() {
		t.processMu.Lock()
		t.process = nil
		t.processMu.Unlock()
	}()

	err := cmd.Run()
	stderr.Flush()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		logging.Debug("FFmpeg exited with status %d", exitErr.ExitCode())
		return &codec.ExecError{Code: exitErr.ExitCode(), Log: stderr.Tail()}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("failed to run ffmpeg: %w", err)
}

// ScratchBytes implements codec.ScratchSizer.
func (t *Transcoder) ScratchBytes() int64 {
	t.mu.Lock()
	dir := t.scratchDir
	t.mu.Unlock()
	if dir == "" {
		return 0
	}
	n, _ := codec.DirSize(dir)
	return n
}

// Cleanup stops the running ffmpeg process, if any.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	if t.process != nil && t.process.Process != nil {
		logging.Info("Killing running ffmpeg process")
		if err := t.process.Process.Kill(); err != nil {
			logging.Warn("failed to kill ffmpeg process: %v", err)
		}
	}
}

// Close implements codec.Runtime.
func (t *Transcoder) Close(_ context.Context) error {
	t.Cleanup()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scratchDir == "" {
		return nil
	}
	err := os.RemoveAll(t.scratchDir)
	t.scratchDir = ""
	return err
}

func (t *Transcoder) path(name string) (string, error) {
	t.mu.Lock()
	dir := t.scratchDir
	t.mu.Unlock()
	if dir == "" {
		return "", codec.ErrNotReady
	}
	return codec.ScratchPath(dir, name)
}
