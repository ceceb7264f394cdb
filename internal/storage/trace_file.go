package storage

import (
	"sync"

	"github.com/tobert/traceview/internal/model"
)

// TraceFile holds the traces of a native JSON trace file and reloads them
// on request. Readers share it across sessions; each gets its own copy.
type TraceFile struct {
	path string

	mu      sync.RWMutex
	traces  []model.Trace
	version uint64
	lastErr error
}

// NewTraceFile creates an unloaded TraceFile for path.
func NewTraceFile(path string) *TraceFile {
	return &TraceFile{path: path}
}

// Path is the file being served.
func (f *TraceFile) Path() string { return f.path }

// Load re-reads the file. On failure the previous traces are kept and
// the error is remembered for Err.
func (f *TraceFile) Load() error {
	traces, err := model.LoadFile(f.path)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastErr = err
	if err != nil {
		return err
	}
	f.traces = traces
	f.version++
	return nil
}

// Traces returns a private copy of the loaded traces.
func (f *TraceFile) Traces() []model.Trace {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return model.CloneTraces(f.traces)
}

// Version changes after every successful Load.
func (f *TraceFile) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}

// Err is the error of the most recent Load, if it failed.
func (f *TraceFile) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}
