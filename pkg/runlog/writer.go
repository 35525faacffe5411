// Package runlog persists the single append-only artifact produced by
// a run: a timestamped log file holding the run header, pre-check
// diagnostics, the relayed workload output, and the terminal summary.
//
// No other state is persisted between invocations.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Writer appends run output to the artifact file, optionally teeing
// every byte to a secondary writer (the operator's terminal).
//
// Writer is safe for concurrent use. Writes are serialized with a mutex
// so interleaved producers cannot corrupt the artifact.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	tee    io.Writer
	path   string
	closed bool
}

// New creates the artifact file under dir, named by run ID and start
// time. The directory is created if needed.
func New(dir, runID string, tee io.Writer) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}
	name := fmt.Sprintf("qpsrunner-%s-%s.log", time.Now().UTC().Format("20060102T150405Z"), shortID(runID))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	return &Writer{f: f, tee: tee, path: path}, nil
}

// Path returns the artifact file path.
func (w *Writer) Path() string {
	return w.path
}

// Write appends raw bytes to the artifact.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}
	n, err := w.f.Write(p)
	if w.tee != nil {
		_, _ = w.tee.Write(p[:n])
	}
	return n, err
}

// Section appends a timestamped section divider.
func (w *Writer) Section(name string) {
	line := fmt.Sprintf("\n---- %s %s ----\n", name, time.Now().UTC().Format(time.RFC3339))
	_, _ = w.Write([]byte(line))
}

// Close flushes and closes the artifact file. Close is idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}

// shortID truncates a UUID-ish run ID for use in a file name.
func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	if runID == "" {
		return "run"
	}
	return runID
}
