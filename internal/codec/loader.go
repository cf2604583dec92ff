package codec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"video-overlay/internal/logging"
	"video-overlay/internal/metrics"
)

// State is the coarse runtime state.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// User-facing status messages.
const (
	LoadingMessage    = "Loading codec runtime..."
	LoadFailedMessage = "Failed to load codec runtime. Please reload and try again."
)

// Status is the runtime status published by the Loader.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Ready reports whether the runtime can accept commands.
func (s Status) Ready() bool {
	return s.State == StateReady
}

// Loader initializes a Runtime once and forwards engine calls to it.
type Loader struct {
	rt  Runtime
	src AssetSource

	mu      sync.Mutex
	status  Status
	started bool
	done    chan struct{}
	err     error
	subs    map[int]func(Status)
	nextSub int
}

// NewLoader returns a Loader for rt fetching assets from src.
func NewLoader(rt Runtime, src AssetSource) *Loader {
	return &Loader{
		rt:     rt,
		src:    src,
		status: Status{State: StateLoading},
		done:   make(chan struct{}),
		subs:   make(map[int]func(Status)),
	}
}

// Initialize fetches the runtime's assets and loads it. Only the first call
// does any work; a later call waits for that load and returns its outcome.
func (l *Loader) Initialize(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return l.Wait(ctx)
	}
	l.started = true
	l.mu.Unlock()

	l.setStatus(Status{State: StateLoading, Message: LoadingMessage})

	start := time.Now()
	err := l.load(ctx)
	metrics.RuntimeLoadDuration.Set(time.Since(start).Seconds())

	if err != nil {
		logging.Error("Codec runtime (%s) failed to load: %v", l.rt.Name(), err)
		l.setStatus(Status{State: StateFailed, Message: LoadFailedMessage, Detail: err.Error()})
	} else {
		if v := l.EngineVersion(); v != "" {
			logging.Info("Codec runtime (%s, %s) loaded in %v", l.rt.Name(), v, time.Since(start).Round(time.Millisecond))
		} else {
			logging.Info("Codec runtime (%s) loaded in %v", l.rt.Name(), time.Since(start).Round(time.Millisecond))
		}
		l.setStatus(Status{State: StateReady})
	}

	l.mu.Lock()
	l.err = err
	close(l.done)
	l.mu.Unlock()
	return err
}

func (l *Loader) load(ctx context.Context) error {
	specs := l.rt.Assets()
	assets := make([]Asset, 0, len(specs))
	for _, spec := range specs {
		asset, err := l.src.Fetch(ctx, spec)
		if err != nil {
			return err
		}
		metrics.RuntimeAssetBytes.WithLabelValues(spec.Name).Set(float64(len(asset.Data)))
		logging.Debug("Fetched runtime asset %s (%d bytes)", spec.Name, len(asset.Data))
		assets = append(assets, asset)
	}

	l.rt.SetLogSink(func(line string) {
		logging.Debug("[%s] %s", l.rt.Name(), line)
	})

	if err := l.rt.Load(ctx, assets); err != nil {
		return fmt.Errorf("load %s runtime: %w", l.rt.Name(), err)
	}
	return nil
}

// Wait blocks until the first Initialize call has finished and returns its
// outcome.
func (l *Loader) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current status.
func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Ready reports whether the runtime is loaded.
func (l *Loader) Ready() bool {
	return l.Status().Ready()
}

// Subscribe registers fn to be called on every status change. The returned
// function removes the subscription.
func (l *Loader) Subscribe(fn func(Status)) func() {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

func (l *Loader) setStatus(s Status) {
	l.mu.Lock()
	l.status = s
	subs := make([]func(Status), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	metrics.SetRuntimeState(string(s.State))
	for _, fn := range subs {
		fn(s)
	}
}

// Engine returns the engine name.
func (l *Loader) Engine() string {
	return l.rt.Name()
}

// EngineVersion returns the loaded engine build, or "" when the runtime
// does not report one.
func (l *Loader) EngineVersion() string {
	if v, ok := l.rt.(Versioner); ok {
		return v.Version()
	}
	return ""
}

// WriteFile forwards to the runtime once ready.
func (l *Loader) WriteFile(ctx context.Context, name string, data []byte) error {
	if !l.Ready() {
		return ErrNotReady
	}
	return l.rt.WriteFile(ctx, name, data)
}

// Exec forwards to the runtime once ready.
func (l *Loader) Exec(ctx context.Context, args []string) error {
	if !l.Ready() {
		return ErrNotReady
	}

	start := time.Now()
	err := l.rt.Exec(ctx, args)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EngineCommandsTotal.WithLabelValues(l.rt.Name(), status).Inc()
	metrics.EngineCommandDuration.WithLabelValues(l.rt.Name()).Observe(time.Since(start).Seconds())
	return err
}

// ReadFile forwards to the runtime once ready.
func (l *Loader) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if !l.Ready() {
		return nil, ErrNotReady
	}
	return l.rt.ReadFile(ctx, name)
}

// ScratchBytes reports the runtime's virtual filesystem size when known.
func (l *Loader) ScratchBytes() int64 {
	if s, ok := l.rt.(ScratchSizer); ok {
		return s.ScratchBytes()
	}
	return 0
}

// Close releases the runtime.
func (l *Loader) Close(ctx context.Context) error {
	if err := l.rt.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
