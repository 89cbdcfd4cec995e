// Package audit provides the structured telemetry sink shared by the
// simulator, the optimizer, the benchmark harness, and the hcal planner.
// Events are held in a bounded in-memory ring buffer, appended to a JSONL
// file when a sink path is configured, and optionally persisted through an
/// injected store. There is no package-level singleton: callers construct a
// Recorder and pass it down.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType identifies the kind of audit event.
type EventType string

const (
	// Simulation lifecycle
	EventSimulationStart    EventType = "simulation_start"
	EventSimulationComplete EventType = "simulation_complete"

	// Optimizer lifecycle
	EventOptimizeStart    EventType = "optimize_start"
	EventOptimizeEpoch    EventType = "optimize_epoch"
	EventOptimizeComplete EventType = "optimize_complete"
	EventCheckpoint       EventType = "checkpoint"

	// Benchmark harness
	EventBenchStart    EventType = "bench_start"
	EventBenchComplete EventType = "bench_complete"

	// Host calibration planner
	EventPlanComputed      EventType = "plan_computed"
	EventApplyAction       EventType = "apply_action"
	EventApplyCommit       EventType = "apply_commit"
	EventCalibrateStart    EventType = "calibrate_start"
	EventCalibrateStop     EventType = "calibrate_stop"
	EventCalibrateComplete EventType = "calibrate_complete"

	// Export normalizer
	EventNormalizeComplete EventType = "normalize_complete"

	// Generic failure
	EventError EventType = "error"
)

// Event is one structured audit record.
type Event struct {
	ID         string                 `json:"id"`
	Timestamp  int64                  `json:"ts"` // unix milliseconds
	Type       EventType              `json:"event"`
	RunID      string                 `json:"run,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Sink persists events beyond the in-memory buffer.
type Sink interface {
	SaveEvent(Event) error
}

// Options configures a Recorder.
type Options struct {
	// BufferSize bounds the in-memory ring. Defaults to 256.
	BufferSize int
	// Path, when set, appends every event as a JSON line to this file.
	Path string
	// Sink, when set, receives every event after the buffer append.
	Sink Sink
	// Logger receives sink failures. Defaults to zap.NewNop().
	Logger *zap.Logger
}

// Recorder collects audit events. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	buf   []Event
	next  int
	total int

	file   *os.File
	sink   Sink
	logger *zap.Logger
}

// NewRecorder builds a Recorder from opts.
func NewRecorder(opts Options) (*Recorder, error) {
	size := opts.BufferSize
	if size <= 0 {
		size = 256
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		buf:    make([]Event, size),
		sink:   opts.Sink,
		logger: logger,
	}
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		r.file = f
	}
	return r, nil
}

// Log records one event, filling in id and timestamp when absent.
func (r *Recorder) Log(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}

	r.mu.Lock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	r.total++

	if r.file != nil {
		if data, err := json.Marshal(e); err == nil {
			r.file.Write(append(data, '\n'))
		}
	}
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		if err := sink.SaveEvent(e); err != nil {
			r.logger.Warn("audit sink write failed",
				zap.String("event", string(e.Type)),
				zap.Error(err))
		}
	}
}

// Recent returns up to n of the most recent events, oldest first.
func (r *Recorder) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.buf)
	held := r.total
	if held > size {
		held = size
	}
	if n > held {
		n = held
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, 0, n)
	start := r.next - n
	if start < 0 {
		start += size
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%size])
	}
	return out
}

// Flush syncs the JSONL sink file.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	return r.file.Sync()
}

// Close flushes and releases the file sink. The Recorder stays usable for
// in-memory logging afterwards.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Total returns the number of events logged since construction.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
