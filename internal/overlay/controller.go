package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"video-overlay/internal/codec"
	"video-overlay/internal/logging"
	"video-overlay/internal/mediatypes"
	"video-overlay/internal/metrics"
)

// Phase is the stored state of the session.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseFileSelected Phase = "file_selected"
	PhaseProcessing   Phase = "processing"
	PhaseCompleted    Phase = "completed"
	PhaseFailed       Phase = "failed"
)

// User-facing messages.
const (
	MsgInvalidFileType = "Please upload a valid video file"
	MsgMissingInput    = "Please upload a video and enter overlay text"
	MsgRuntimeLoading  = "Codec runtime is still loading, please wait..."
	MsgProcessing      = "Processing video..."
	MsgProcessFailed   = "Failed to process video"
)

var (
	// ErrBusy is returned when an overlay run is requested while one is
	// already processing.
	ErrBusy = errors.New("overlay already processing")
	// ErrInvalidFileType is wrapped by the Failure returned from SelectFile.
	ErrInvalidFileType = errors.New("invalid file type")
	// ErrPrecondition is wrapped by the Failure returned when a run is
	// requested without a file, a caption or a ready runtime.
	ErrPrecondition = errors.New("overlay precondition not met")
)

// FailureKind classifies a surfaced error.
type FailureKind string

const (
	KindRuntimeLoad     FailureKind = "runtime_load"
	KindInvalidFileType FailureKind = "invalid_file_type"
	KindPrecondition    FailureKind = "precondition"
	KindEngineExecution FailureKind = "engine_execution"
)

// Failure is an error shown to the user: a short fixed message plus an
// optional diagnostic.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
	Err     error       `json:"-"`
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return f.Message
	}
	return f.Message + ": " + f.Detail
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// MediaAsset is an in-memory video.
type MediaAsset struct {
	Name     string
	MIMEType string
	Data     []byte
}

// FileInfo summarizes the selected MediaAsset.
type FileInfo struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Result is a produced video published at a session-scoped address.
type Result struct {
	URL          string `json:"url"`
	DownloadName string `json:"downloadName"`
	MIMEType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}

// State is an immutable snapshot of the session.
type State struct {
	Phase         Phase        `json:"phase"`
	File          *FileInfo    `json:"file,omitempty"`
	Caption       string       `json:"caption"`
	Runtime       codec.Status `json:"runtime"`
	StatusMessage string       `json:"statusMessage,omitempty"`
	Error         *Failure     `json:"error,omitempty"`
	Result        *Result      `json:"result,omitempty"`
	// CanProcess is true when a file is selected, the caption is not blank,
	// the runtime is ready and nothing is processing.
	CanProcess bool `json:"canProcess"`
}

// Engine is the codec runtime handle the controller drives.
type Engine interface {
	Status() codec.Status
	WriteFile(ctx context.Context, name string, data []byte) error
	Exec(ctx context.Context, args []string) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// Publisher issues and releases session-scoped addresses for results.
type Publisher interface {
	Publish(name, mimeType string, data []byte) string
	Revoke(url string) bool
}

// Controller owns one overlay session.
type Controller struct {
	engine    Engine
	publisher Publisher
	style     TextStyle

	mu      sync.Mutex
	phase   Phase
	file    *MediaAsset
	caption string
	runtime codec.Status
	err     *Failure
	result  *Result
	closed  bool
	subs    map[int]chan State
	nextSub int
	wg      sync.WaitGroup
}

// New returns an idle Controller.
func New(engine Engine, publisher Publisher) *Controller {
	return &Controller{
		engine:    engine,
		publisher: publisher,
		style:     DefaultStyle,
		phase:     PhaseIdle,
		runtime:   engine.Status(),
		subs:      make(map[int]chan State),
	}
}

// SelectFile replaces the selected video. A file whose declared type is not
// video/* is rejected and the current selection is kept.
func (c *Controller) SelectFile(asset MediaAsset) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseProcessing {
		return ErrBusy
	}

	if !mediatypes.IsVideo(asset.MIMEType) {
		metrics.FileSelectionsTotal.WithLabelValues("rejected").Inc()
		logging.Debug("Rejected file %q with type %q", asset.Name, asset.MIMEType)
		c.err = &Failure{
			Kind:    KindInvalidFileType,
			Message: MsgInvalidFileType,
			Detail:  fmt.Sprintf("%s: declared type %q", asset.Name, asset.MIMEType),
			Err:     ErrInvalidFileType,
		}
		c.notifyLocked()
		return c.err
	}

	metrics.FileSelectionsTotal.WithLabelValues("accepted").Inc()
	metrics.SelectedFileBytes.Set(float64(len(asset.Data)))
	logging.Info("Selected %s (%s, %d bytes)", asset.Name, asset.MIMEType, len(asset.Data))

	c.file = &asset
	c.err = nil
	c.revokeLocked()
	c.phase = PhaseFileSelected
	c.notifyLocked()
	return nil
}

// SetCaption updates the caption text.
func (c *Controller) SetCaption(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caption = text
	c.notifyLocked()
}

// SetRuntimeStatus records a runtime status change.
func (c *Controller) SetRuntimeStatus(s codec.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runtime = s
	c.notifyLocked()
}

type job struct {
	input   []byte
	caption string
	started time.Time
}

// RunOverlay burns the caption into the selected video and publishes the
// result. It blocks until the run finishes.
func (c *Controller) RunOverlay(ctx context.Context) (Result, error) {
	j, err := c.begin()
	if err != nil {
		return Result{}, err
	}
	defer c.wg.Done()
	return c.run(ctx, j)
}

// Start checks the preconditions like RunOverlay, then runs in the
// background. The run is not cancelled when ctx is.
func (c *Controller) Start(ctx context.Context) error {
	j, err := c.begin()
	if err != nil {
		return err
	}
	go func() {
		defer c.wg.Done()
		_, _ = c.run(context.WithoutCancel(ctx), j)
	}()
	return nil
}

// Wait blocks until no run is in flight.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) begin() (job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseProcessing {
		metrics.OverlayRunsTotal.WithLabelValues("rejected").Inc()
		return job{}, ErrBusy
	}

	if c.file == nil || strings.TrimSpace(c.caption) == "" {
		return job{}, c.rejectLocked(&Failure{Kind: KindPrecondition, Message: MsgMissingInput, Err: ErrPrecondition})
	}

	c.runtime = c.engine.Status()
	switch c.runtime.State {
	case codec.StateReady:
	case codec.StateFailed:
		return job{}, c.rejectLocked(&Failure{
			Kind:    KindRuntimeLoad,
			Message: codec.LoadFailedMessage,
			Detail:  c.runtime.Detail,
			Err:     ErrPrecondition,
		})
	default:
		return job{}, c.rejectLocked(&Failure{Kind: KindPrecondition, Message: MsgRuntimeLoading, Err: ErrPrecondition})
	}

	c.phase = PhaseProcessing
	c.err = nil
	c.revokeLocked()
	c.wg.Add(1)
	c.notifyLocked()

	return job{input: c.file.Data, caption: c.caption, started: time.Now()}, nil
}

func (c *Controller) rejectLocked(f *Failure) error {
	metrics.OverlayRunsTotal.WithLabelValues("rejected").Inc()
	c.err = f
	c.notifyLocked()
	return f
}

func (c *Controller) run(ctx context.Context, j job) (Result, error) {
	logging.Info("Processing overlay (%d bytes, caption %q)", len(j.input), j.caption)

	data, err := c.process(ctx, j)
	if err != nil {
		logging.Warn("Overlay failed: %v", err)
		metrics.OverlayRunsTotal.WithLabelValues("failed").Inc()

		f := &Failure{Kind: KindEngineExecution, Message: MsgProcessFailed, Detail: err.Error(), Err: err}
		c.mu.Lock()
		c.phase = PhaseFailed
		c.err = f
		c.notifyLocked()
		c.mu.Unlock()
		return Result{}, f
	}

	url := c.publisher.Publish(DownloadName, OutputMIME, data)
	res := Result{URL: url, DownloadName: DownloadName, MIMEType: OutputMIME, Size: int64(len(data))}

	metrics.OverlayRunsTotal.WithLabelValues("success").Inc()
	metrics.OverlayRunDuration.Observe(time.Since(j.started).Seconds())
	metrics.OverlayOutputBytes.Observe(float64(len(data)))
	logging.Info("Overlay completed in %v (%d bytes)", time.Since(j.started).Round(time.Millisecond), len(data))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.publisher.Revoke(url)
		return res, nil
	}
	c.phase = PhaseCompleted
	c.result = &res
	c.notifyLocked()
	return res, nil
}

func (c *Controller) process(ctx context.Context, j job) ([]byte, error) {
	if err := c.engine.WriteFile(ctx, InputName, j.input); err != nil {
		return nil, fmt.Errorf("write %s: %w", InputName, err)
	}
	if err := c.engine.Exec(ctx, Command(j.caption, c.style)); err != nil {
		return nil, fmt.Errorf("drawtext: %w", err)
	}
	data, err := c.engine.ReadFile(ctx, OutputName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", OutputName, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read %s: empty output", OutputName)
	}
	return data, nil
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := State{
		Phase:   c.phase,
		Caption: c.caption,
		Runtime: c.runtime,
		Error:   c.err,
	}
	if c.file != nil {
		s.File = &FileInfo{Name: c.file.Name, MIMEType: c.file.MIMEType, Size: int64(len(c.file.Data))}
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}

	switch {
	case c.phase == PhaseProcessing:
		s.StatusMessage = MsgProcessing
	case c.runtime.State == codec.StateLoading:
		s.StatusMessage = c.runtime.Message
	}

	if s.Error == nil && c.runtime.State == codec.StateFailed {
		s.Error = &Failure{Kind: KindRuntimeLoad, Message: codec.LoadFailedMessage, Detail: c.runtime.Detail}
	}

	s.CanProcess = c.file != nil &&
		strings.TrimSpace(c.caption) != "" &&
		c.runtime.Ready() &&
		c.phase != PhaseProcessing
	return s
}

// Subscribe returns a channel receiving the latest State after every
// change. Slow readers only see the most recent snapshot. The returned
// function ends the subscription.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	id := c.nextSub
	c.nextSub++
	ch <- c.snapshotLocked()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Controller) notifyLocked() {
	s := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (c *Controller) revokeLocked() {
	if c.result == nil {
		return
	}
	c.publisher.Revoke(c.result.URL)
	c.result = nil
}

// Close ends the session: the live result address is released and
// subscriptions are closed. A run still in flight discards its output.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.revokeLocked()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	metrics.SelectedFileBytes.Set(0)
}
