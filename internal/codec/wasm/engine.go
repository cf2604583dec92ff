package wasm

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"video-overlay/internal/codec"
	"video-overlay/internal/logging"
	"video-overlay/internal/mediatypes"
)

// logTailLines is how many engine log lines an ExecError keeps.
const logTailLines = 40

var wasmMagic = []byte("\x00asm")

// ErrUnsupported is returned when the binary asset is not a WebAssembly
// module.
var ErrUnsupported = errors.New("unsupported codec binary")

// Manifest is the glue descriptor shipped next to the binary.
type Manifest struct {
	// Program is argv[0] inside the guest.
	Program string `json:"program"`
	// Args are inserted before every command's own arguments.
	Args []string `json:"args"`
	// Env is the guest environment.
	Env map[string]string `json:"env"`
	// MemoryLimitPages caps guest memory in 64KiB pages. 0 keeps wazero's default.
	MemoryLimitPages uint32 `json:"memoryLimitPages"`
}

// ParseManifest decodes a glue descriptor, filling defaults.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse %s: %w", codec.CoreGlue, err)
	}
	if m.Program == "" {
		m.Program = "ffmpeg"
	}
	return m, nil
}

// Engine implements codec.Runtime on wazero.
type Engine struct {
	execMu sync.Mutex

	mu       sync.Mutex
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	manifest Manifest
	root     string
	sink     func(string)
}

// New returns an unloaded engine.
func New() *Engine {
	return &Engine{}
}

// Name implements codec.Runtime.
func (e *Engine) Name() string {
	return "wasm"
}

// Assets implements codec.Runtime.
func (e *Engine) Assets() []codec.AssetSpec {
	return []codec.AssetSpec{
		{Name: codec.CoreWasm, ContentType: mediatypes.WASM},
		{Name: codec.CoreGlue, ContentType: mediatypes.JSON},
	}
}

// SetLogSink implements codec.Runtime.
func (e *Engine) SetLogSink(sink func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Load compiles the binary and prepares the virtual filesystem.
func (e *Engine) Load(ctx context.Context, assets []codec.Asset) error {
	bin, ok := codec.FindAsset(assets, codec.CoreWasm)
	if !ok {
		return fmt.Errorf("missing asset %s", codec.CoreWasm)
	}
	if !bytes.HasPrefix(bin.Data, wasmMagic) {
		return fmt.Errorf("%w: %s is not a WebAssembly module", ErrUnsupported, codec.CoreWasm)
	}

	glue, ok := codec.FindAsset(assets, codec.CoreGlue)
	if !ok {
		return fmt.Errorf("missing asset %s", codec.CoreGlue)
	}
	manifest, err := ParseManifest(glue.Data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runtime != nil {
		return nil
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if manifest.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(manifest.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("instantiate WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, bin.Data)
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("compile %s: %w", codec.CoreWasm, err)
	}

	root, err := os.MkdirTemp("", "video-overlay-vfs-*")
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("create virtual filesystem: %w", err)
	}

	e.runtime = rt
	e.compiled = compiled
	e.manifest = manifest
	e.root = root

	logging.Debug("WASM engine ready: program=%s, imports=%d, vfs=%s",
		manifest.Program, len(compiled.ImportedFunctions()), root)
	return nil
}

// WriteFile implements codec.Runtime.
func (e *Engine) WriteFile(_ context.Context, name string, data []byte) error {
	root, err := e.vfsRoot()
	if err != nil {
		return err
	}
	p, err := codec.ScratchPath(root, name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

// ReadFile implements codec.Runtime.
func (e *Engine) ReadFile(_ context.Context, name string) ([]byte, error) {
	root, err := e.vfsRoot()
	if err != nil {
		return nil, err
	}
	p, err := codec.ScratchPath(root, name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// Exec runs one command in a fresh guest instance.
func (e *Engine) Exec(ctx context.Context, args []string) error {
	e.execMu.Lock()
	defer e.execMu.Unlock()

	e.mu.Lock()
	rt, compiled, manifest, root, sink := e.runtime, e.compiled, e.manifest, e.root, e.sink
	e.mu.Unlock()

	if rt == nil {
		return codec.ErrNotReady
	}

	out := codec.NewLineWriter(sink, logTailLines)
	argv := append([]string{manifest.Program}, manifest.Args...)
	argv = append(argv, args...)

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(argv...).
		WithStdout(out).
		WithStderr(out).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(root, "/")).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader)

	keys := make([]string, 0, len(manifest.Env))
	for k := range manifest.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		modCfg = modCfg.WithEnv(k, manifest.Env[k])
	}

	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	out.Flush()
	if mod != nil {
		_ = mod.Close(ctx)
	}

	return exitError(err, out.Tail())
}

// exitError maps a guest run result to nil or an error. proc_exit(0) is
// success.
func exitError(err error, tail []string) error {
	if err == nil {
		return nil
	}
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		if exit.ExitCode() == 0 {
			return nil
		}
		return &codec.ExecError{Code: int(exit.ExitCode()), Log: tail}
	}
	return fmt.Errorf("run codec engine: %w", err)
}

// ScratchBytes implements codec.ScratchSizer.
func (e *Engine) ScratchBytes() int64 {
	root, err := e.vfsRoot()
	if err != nil {
		return 0
	}
	n, _ := codec.DirSize(root)
	return n
}

// Close implements codec.Runtime.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.runtime != nil {
		errs = append(errs, e.runtime.Close(ctx))
		e.runtime = nil
		e.compiled = nil
	}
	if e.root != "" {
		errs = append(errs, os.RemoveAll(e.root))
		e.root = ""
	}
	return errors.Join(errs...)
}

func (e *Engine) vfsRoot() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.root == "" {
		return "", codec.ErrNotReady
	}
	return e.root, nil
}
