package codec

import (
	"bytes"
	"strings"
	"sync"
)

// LineWriter splits engine output into lines, forwards each to a sink and
// keeps the most recent ones for error reports. ffmpeg rewrites its progress
// line with '\r', so both '\r' and '\n' end a line.
type LineWriter struct {
	mu      sync.Mutex
	sink    func(string)
	partial []byte
	tail    []string
	keep    int
}

// NewLineWriter returns a writer forwarding to sink (which may be nil) and
// retaining the last keep lines.
func NewLineWriter(sink func(string), keep int) *LineWriter {
	return &LineWriter{sink: sink, keep: keep}
}

// Write implements io.Writer.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := append(w.partial, p...)
	for {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		w.emit(string(data[:i]))
		data = data[i+1:]
	}
	w.partial = append(w.partial[:0:0], data...)
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
}

// Tail returns a copy of the retained lines, oldest first.
func (w *LineWriter) Tail() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.tail...)
}

func (w *LineWriter) emit(line string) {
	line = strings.TrimRight(line, " \t")
	if line == "" {
		return
	}
	if w.sink != nil {
		w.sink(line)
	}
	if w.keep <= 0 {
		return
	}
	w.tail = append(w.tail, line)
	if len(w.tail) > w.keep {
		w.tail = w.tail[len(w.tail)-w.keep:]
	}
}
