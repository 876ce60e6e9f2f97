package logging

import (
	"bytes"
	"fmt"
	"os"
	"sync"
)

// RunLog captures every log line emitted during one pipeline run so the full
// log can be uploaded to object storage at run end. It is safe to share
// between the logger output and direct writes.
//
// Typical wiring:
//
//	runLog := logging.NewRunLog()
//	logger := logging.NewLogger(level, format)
//	logger.SetOutput(io.MultiWriter(os.Stdout, runLog))
type RunLog struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewRunLog creates an empty run log buffer
func NewRunLog() *RunLog {
	return &RunLog{}
}

// Write implements io.Writer
func (r *RunLog) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// Len returns the number of buffered bytes
func (r *RunLog) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Len()
}

// Bytes returns a copy of the buffered log
func (r *RunLog) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, r.buf.Len())
	copy(out, r.buf.Bytes())
	return out
}

// WriteFile flushes the buffered log to a local file
func (r *RunLog) WriteFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.WriteFile(path, r.buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return nil
}
