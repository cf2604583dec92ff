package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"video-overlay/internal/codec"
)

// fakeEngine is an in-memory Engine. Exec copies the input to the output
// unless execErr is set; block, when non-nil, holds Exec until closed.
type fakeEngine struct {
	mu      sync.Mutex
	status  codec.Status
	files   map[string][]byte
	calls   [][]string
	execErr error
	block   chan struct{}
}

func newFakeEngine(state codec.State) *fakeEngine {
	return &fakeEngine{status: codec.Status{State: state}, files: make(map[string][]byte)}
}

func (e *fakeEngine) Status() codec.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *fakeEngine) WriteFile(_ context.Context, name string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = append([]byte(nil), data...)
	return nil
}

func (e *fakeEngine) Exec(_ context.Context, args []string) error {
	e.mu.Lock()
	e.calls = append(e.calls, args)
	block, execErr := e.block, e.execErr
	e.mu.Unlock()

	if block != nil {
		<-block
	}
	if execErr != nil {
		return execErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[OutputName] = append([]byte("out:"), e.files[InputName]...)
	return nil
}

func (e *fakeEngine) ReadFile(_ context.Context, name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: no such file", name)
	}
	return data, nil
}

func (e *fakeEngine) execCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type fakePublisher struct {
	mu      sync.Mutex
	next    int
	live    map[string][]byte
	revoked []string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{live: make(map[string][]byte)}
}

func (p *fakePublisher) Publish(_, _ string, data []byte) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	url := fmt.Sprintf("/results/%d", p.next)
	p.live[url] = data
	return url
}

func (p *fakePublisher) Revoke(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.live[url]; !ok {
		return false
	}
	delete(p.live, url)
	p.revoked = append(p.revoked, url)
	return true
}

func (p *fakePublisher) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

var sampleVideo = MediaAsset{Name: "clip.mp4", MIMEType: "video/mp4", Data: []byte("frames")}

func readyController(t *testing.T) (*Controller, *fakeEngine, *fakePublisher) {
	t.Helper()
	engine := newFakeEngine(codec.StateReady)
	pub := newFakePublisher()
	c := New(engine, pub)
	t.Cleanup(c.Close)
	return c, engine, pub
}

func TestNewControllerIsIdle(t *testing.T) {
	c, _, _ := readyController(t)
	s := c.State()

	if s.Phase != PhaseIdle {
		t.Errorf("Phase = %q, want idle", s.Phase)
	}
	if s.CanProcess {
		t.Error("CanProcess should be false with no file")
	}
	if s.File != nil || s.Result != nil || s.Error != nil {
		t.Errorf("unexpected state %+v", s)
	}
}

func TestSelectFile(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		wantErr  bool
	}{
		{"mp4", "video/mp4", false},
		{"webm with codecs", "video/webm; codecs=vp9", false},
		{"uppercase", "VIDEO/QUICKTIME", false},
		{"text", "text/plain", true},
		{"image", "image/png", true},
		{"empty", "", true},
		{"video substring", "application/video", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := readyController(t)
			err := c.SelectFile(MediaAsset{Name: "f", MIMEType: tt.mimeType, Data: []byte("x")})

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFileType) {
					t.Fatalf("SelectFile() error = %v, want ErrInvalidFileType", err)
				}
				s := c.State()
				if s.Error == nil || s.Error.Message != MsgInvalidFileType || s.Error.Kind != KindInvalidFileType {
					t.Errorf("Error = %+v", s.Error)
				}
				if s.Phase != PhaseIdle {
					t.Errorf("Phase = %q, want idle", s.Phase)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectFile() error = %v", err)
			}
			if s := c.State(); s.Phase != PhaseFileSelected || s.File == nil {
				t.Errorf("state after select = %+v", s)
			}
		})
	}
}

func TestInvalidFileKeepsSelection(t *testing.T) {
	c, _, _ := readyController(t)
	if err := c.SelectFile(sampleVideo); err != nil {
		t.Fatal(err)
	}

	_ = c.SelectFile(MediaAsset{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("hi")})

	s := c.State()
	if s.File == nil || s.File.Name != "clip.mp4" {
		t.Errorf("File = %+v, want clip.mp4 kept", s.File)
	}
	if s.Phase != PhaseFileSelected {
		t.Errorf("Phase = %q, want file_selected", s.Phase)
	}
	if s.Error == nil || s.Error.Kind != KindInvalidFileType {
		t.Errorf("Error = %+v", s.Error)
	}

	// A valid selection clears the error.
	if err := c.SelectFile(sampleVideo); err != nil {
		t.Fatal(err)
	}
	if s := c.State(); s.Error != nil {
		t.Errorf("Error = %+v, want cleared", s.Error)
	}
}

func TestRunOverlayPreconditions(t *testing.T) {
	tests := []struct {
		name     string
		runtime  codec.State
		file     bool
		caption  string
		wantMsg  string
		wantKind FailureKind
	}{
		{"no file", codec.StateReady, false, "hi", MsgMissingInput, KindPrecondition},
		{"empty caption", codec.StateReady, true, "", MsgMissingInput, KindPrecondition},
		{"blank caption", codec.StateReady, true, " \t\n", MsgMissingInput, KindPrecondition},
		{"runtime loading", codec.StateLoading, true, "hi", MsgRuntimeLoading, KindPrecondition},
		{"runtime failed", codec.StateFailed, true, "hi", codec.LoadFailedMessage, KindRuntimeLoad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine(tt.runtime)
			c := New(engine, newFakePublisher())
			defer c.Close()

			if tt.file {
				if err := c.SelectFile(sampleVideo); err != nil {
					t.Fatal(err)
				}
			}
			c.SetCaption(tt.caption)

			_, err := c.RunOverlay(context.Background())
			if !errors.Is(err, ErrPrecondition) {
				t.Fatalf("RunOverlay() error = %v, want ErrPrecondition", err)
			}
			var f *Failure
			if !errors.As(err, &f) || f.Message != tt.wantMsg || f.Kind != tt.wantKind {
				t.Errorf("failure = %+v, want %q (%s)", f, tt.wantMsg, tt.wantKind)
			}
			if engine.execCount() != 0 {
				t.Error("engine must not be called when a precondition fails")
			}
			if s := c.State(); s.Phase == PhaseProcessing || s.CanProcess {
				t.Errorf("state = %+v", s)
			}
		})
	}
}

func TestRunOverlaySuccess(t *testing.T) {
	c, engine, pub := readyController(t)
	if err := c.SelectFile(sampleVideo); err != nil {
		t.Fatal(err)
	}
	c.SetCaption("HELLO:WORLD")

	if !c.State().CanProcess {
		t.Fatal("CanProcess should be true")
	}

	res, err := c.RunOverlay(context.Background())
	if err != nil {
		t.Fatalf("RunOverlay() error = %v", err)
	}
	if res.DownloadName != DownloadName || res.MIMEType != "video/mp4" {
		t.Errorf("result = %+v", res)
	}
	if res.Size != int64(len("out:frames")) {
		t.Errorf("Size = %d", res.Size)
	}
	if string(pub.live[res.URL]) != "out:frames" {
		t.Errorf("published %q", pub.live[res.URL])
	}
	if got := engine.files[InputName]; string(got) != "frames" {
		t.Errorf("input written = %q", got)
	}

	args := engine.calls[0]
	if !strings.Contains(strings.Join(args, " "), `text='HELLO\:WORLD'`) {
		t.Errorf("command = %q", args)
	}

	s := c.State()
	if s.Phase != PhaseCompleted || s.Result == nil || s.Result.URL != res.URL {
		t.Errorf("state = %+v", s)
	}
	if s.StatusMessage != "" || s.Error != nil {
		t.Errorf("status %q, error %+v after success", s.StatusMessage, s.Error)
	}
}

func TestRunOverlayEngineFailureIsRecoverable(t *testing.T) {
	c, engine, _ := readyController(t)
	_ = c.SelectFile(sampleVideo)
	c.SetCaption("caption")

	engine.execErr = &codec.ExecError{Code: 1, Log: []string{"Error parsing filterchain"}}
	_, err := c.RunOverlay(context.Background())

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("RunOverlay() error = %v, want *Failure", err)
	}
	if f.Kind != KindEngineExecution || f.Message != MsgProcessFailed {
		t.Errorf("failure = %+v", f)
	}
	if !strings.Contains(f.Detail, "Error parsing filterchain") {
		t.Errorf("Detail = %q, want engine log", f.Detail)
	}
	var execErr *codec.ExecError
	if !errors.As(err, &execErr) {
		t.Error("failure should unwrap to the ExecError")
	}

	s := c.State()
	if s.Phase != PhaseFailed || !s.CanProcess {
		t.Errorf("state after failure = %+v", s)
	}

	engine.execErr = nil
	if _, err := c.RunOverlay(context.Background()); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if s := c.State(); s.Phase != PhaseCompleted || s.Error != nil {
		t.Errorf("state after retry = %+v", s)
	}
}

func TestSecondRunWhileProcessingIsRejected(t *testing.T) {
	c, engine, _ := readyController(t)
	_ = c.SelectFile(sampleVideo)
	c.SetCaption("caption")

	engine.block = make(chan struct{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if s := c.State(); s.Phase != PhaseProcessing || s.StatusMessage != MsgProcessing || s.CanProcess {
		t.Errorf("state while processing = %+v", s)
	}
	if _, err := c.RunOverlay(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("RunOverlay() error = %v, want ErrBusy", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Start() error = %v, want ErrBusy", err)
	}
	if err := c.SelectFile(sampleVideo); !errors.Is(err, ErrBusy) {
		t.Errorf("SelectFile() error = %v, want ErrBusy", err)
	}

	close(engine.block)
	c.Wait()

	if n := engine.execCount(); n != 1 {
		t.Errorf("engine ran %d times, want 1", n)
	}
	if s := c.State(); s.Phase != PhaseCompleted {
		t.Errorf("Phase = %q, want completed", s.Phase)
	}
}

func TestStartIgnoresCallerCancellation(t *testing.T) {
	c, _, _ := readyController(t)
	_ = c.SelectFile(sampleVideo)
	c.SetCaption("caption")

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	c.Wait()

	if s := c.State(); s.Phase != PhaseCompleted {
		t.Errorf("Phase = %q, want completed", s.Phase)
	}
}

func TestPreviousResultIsRevoked(t *testing.T) {
	c, _, pub := readyController(t)
	_ = c.SelectFile(sampleVideo)
	c.SetCaption("one")

	first, err := c.RunOverlay(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	c.SetCaption("two")
	second, err := c.RunOverlay(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := pub.live[first.URL]; ok {
		t.Error("first result should be revoked after a new run")
	}
	if pub.liveCount() != 1 {
		t.Errorf("live results = %d, want 1", pub.liveCount())
	}

	// Selecting a new file discards the result as well.
	_ = c.SelectFile(sampleVideo)
	if _, ok := pub.live[second.URL]; ok {
		t.Error("result should be revoked on new selection")
	}
	if c.State().Result != nil {
		t.Error("State().Result should be cleared")
	}
}

func TestCloseRevokesResult(t *testing.T) {
	engine := newFakeEngine(codec.StateReady)
	pub := newFakePublisher()
	c := New(engine, pub)

	_ = c.SelectFile(sampleVideo)
	c.SetCaption("caption")
	if _, err := c.RunOverlay(context.Background()); err != nil {
		t.Fatal(err)
	}

	ch, cancel := c.Subscribe()
	defer cancel()
	<-ch

	c.Close()
	c.Close()

	if pub.liveCount() != 0 {
		t.Errorf("live results after Close = %d", pub.liveCount())
	}
	if _, ok := <-ch; ok {
		t.Error("subscription should be closed")
	}
}

func TestRuntimeStatusFlowsIntoState(t *testing.T) {
	engine := newFakeEngine(codec.StateLoading)
	c := New(engine, newFakePublisher())
	defer c.Close()

	c.SetRuntimeStatus(codec.Status{State: codec.StateLoading, Message: codec.LoadingMessage})
	if s := c.State(); s.StatusMessage != codec.LoadingMessage {
		t.Errorf("StatusMessage = %q", s.StatusMessage)
	}

	c.SetRuntimeStatus(codec.Status{State: codec.StateFailed, Message: codec.LoadFailedMessage, Detail: "404"})
	s := c.State()
	if s.Error == nil || s.Error.Kind != KindRuntimeLoad || s.Error.Detail != "404" {
		t.Errorf("Error = %+v", s.Error)
	}

	_ = c.SelectFile(sampleVideo)
	c.SetCaption("caption")
	if s := c.State(); s.CanProcess || s.Error == nil {
		t.Errorf("failed runtime must keep the trigger disabled: %+v", s)
	}
}

func TestSubscribeDeliversLatestState(t *testing.T) {
	c, _, _ := readyController(t)
	ch, cancel := c.Subscribe()

	if s := <-ch; s.Phase != PhaseIdle {
		t.Errorf("initial Phase = %q", s.Phase)
	}

	c.SetCaption("a")
	c.SetCaption("ab")
	c.SetCaption("abc")

	select {
	case s := <-ch:
		if s.Caption != "abc" {
			t.Errorf("Caption = %q, want latest", s.Caption)
		}
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}
