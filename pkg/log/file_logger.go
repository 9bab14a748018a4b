package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends capture events to a .ilog file as a CBOR stream.
// Safe for concurrent use from multiple goroutines.
type FileLogger struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *cbor.Encoder
	writeErr error
	closed   bool
}

// NewFileLogger opens path for appending, creating it with mode 0644 if it
// does not exist. Events from a new run land after any existing capture.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Log appends an event to the capture file. Encode failures are recorded
// and surfaced by Close; logging never blocks or fails panel traffic.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil && l.writeErr == nil {
		l.writeErr = err
	}
}

// Close flushes and closes the capture file. It returns the first write
// error seen during the capture, if any, so callers learn about truncated
// files. Close is idempotent; Log calls after Close are ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	if l.writeErr != nil {
		return l.writeErr
	}
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

var _ Logger = (*FileLogger)(nil)
