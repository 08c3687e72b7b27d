// Package profiling records per-cycle timings of the cognitive loops to a
// jsonl log. Off by default; enabled via PIANO_PROFILE=1 so production
// agents pay nothing for it.
package profiling

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// CycleTiming is one timed unit of cognitive work: a module cycle or a
// controller decision.
type CycleTiming struct {
	Agent      string         `json:"agent,omitempty"`
	Stage      string         `json:"stage"` // module name or "decision"
	StartTime  time.Time      `json:"start_time"`
	DurationMs float64        `json:"duration_ms"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Profiler appends cycle timings to a log file.
type Profiler struct {
	enabled bool
	mu      sync.Mutex
	logFile *os.File
	encoder *json.Encoder
}

var globalProfiler = &Profiler{}
var once sync.Once

// Init opens the timing log. Called once from main; profiling stays off
// when enabled is false or Init is never called.
func Init(enabled bool, logPath string) error {
	var err error
	once.Do(func() {
		if !enabled {
			return
		}
		f, openErr := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if openErr != nil {
			err = fmt.Errorf("open profiling log: %w", openErr)
			return
		}
		globalProfiler = &Profiler{enabled: true, logFile: f, encoder: json.NewEncoder(f)}
	})
	return err
}

// Get returns the global profiler.
func Get() *Profiler {
	return globalProfiler
}

// Close closes the timing log.
func (p *Profiler) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.logFile != nil {
		return p.logFile.Close()
	}
	return nil
}

// Start begins timing one cycle and returns the function to call when it
// completes. The no-op path allocates nothing beyond the closure.
func (p *Profiler) Start(agent, stage string) func() {
	if !p.enabled {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.Record(agent, stage, time.Since(start), nil)
	}
}

// Record writes one timing measurement.
func (p *Profiler) Record(agent, stage string, duration time.Duration, metadata map[string]any) {
	if !p.enabled {
		return
	}

	timing := CycleTiming{
		Agent:      agent,
		Stage:      stage,
		StartTime:  time.Now().Add(-duration),
		DurationMs: float64(duration.Nanoseconds()) / 1e6,
		Metadata:   metadata,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.encoder != nil {
		_ = p.encoder.Encode(timing)
	}
}

// IsEnabled reports whether timings are being written.
func (p *Profiler) IsEnabled() bool {
	return p.enabled
}
