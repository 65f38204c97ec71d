// Package metrics provides lightweight, lock-free counters for tracking
// runtime statistics of the netmoded daemon.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// Collector tracks runtime metrics for the daemon.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	transitionsAttempted atomic.Int64
	transitionsSucceeded atomic.Int64
	transitionsFailed    atomic.Int64
	fallbacks            atomic.Int64
	probesOK             atomic.Int64
	probesFailed         atomic.Int64
	gestures             atomic.Int64
	intentsDropped       atomic.Int64
	commandsRun          atomic.Int64
	commandsFailed       atomic.Int64
	renders              atomic.Int64
	renderFailures       atomic.Int64
	errorsTotal          atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastProbe    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Transition metrics ───────────────────────────────────────────────

// TransitionAttempted records the start of a mode change.
func (c *Collector) TransitionAttempted() {
	if c == nil {
		return
	}
	c.transitionsAttempted.Add(1)
}

// TransitionSucceeded records a completed mode change.
func (c *Collector) TransitionSucceeded() {
	if c == nil {
		return
	}
	c.transitionsSucceeded.Add(1)
}

// TransitionFailed records a mode change that left the mode unchanged.
func (c *Collector) TransitionFailed() {
	if c == nil {
		return
	}
	c.transitionsFailed.Add(1)
}

// FallbackTriggered records the monitor forcing access-point mode after
// repeated probe failures.
func (c *Collector) FallbackTriggered() {
	if c == nil {
		return
	}
	c.fallbacks.Add(1)
}

// TransitionsAttempted returns the lifetime transition attempt count.
func (c *Collector) TransitionsAttempted() int64 {
	if c == nil {
		return 0
	}
	return c.transitionsAttempted.Load()
}

// TransitionsSucceeded returns the lifetime successful transition count.
func (c *Collector) TransitionsSucceeded() int64 {
	if c == nil {
		return 0
	}
	return c.transitionsSucceeded.Load()
}

// TransitionsFailed returns the lifetime failed transition count.
func (c *Collector) TransitionsFailed() int64 {
	if c == nil {
		return 0
	}
	return c.transitionsFailed.Load()
}

// Fallbacks returns the number of automatic access-point fallbacks.
func (c *Collector) Fallbacks() int64 {
	if c == nil {
		return 0
	}
	return c.fallbacks.Load()
}

// ── Probe metrics ────────────────────────────────────────────────────

// ProbeResult records one connectivity probe and its outcome.
func (c *Collector) ProbeResult(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.probesOK.Add(1)
	} else {
		c.probesFailed.Add(1)
	}
	c.mu.Lock()
	c.lastProbe = time.Now()
	c.mu.Unlock()
}

// ProbesOK returns the number of successful connectivity probes.
func (c *Collector) ProbesOK() int64 {
	if c == nil {
		return 0
	}
	return c.probesOK.Load()
}

// ProbesFailed returns the number of failed connectivity probes.
func (c *Collector) ProbesFailed() int64 {
	if c == nil {
		return 0
	}
	return c.probesFailed.Load()
}

// ── Button metrics ───────────────────────────────────────────────────

// GestureClassified records a debounced press or hold.
func (c *Collector) GestureClassified() {
	if c == nil {
		return
	}
	c.gestures.Add(1)
}

// IntentDropped records an intent discarded because the queue was full.
func (c *Collector) IntentDropped() {
	if c == nil {
		return
	}
	c.intentsDropped.Add(1)
}

// Gestures returns the number of classified gestures.
func (c *Collector) Gestures() int64 {
	if c == nil {
		return 0
	}
	return c.gestures.Load()
}

// IntentsDropped returns the number of discarded intents.
func (c *Collector) IntentsDropped() int64 {
	if c == nil {
		return 0
	}
	return c.intentsDropped.Load()
}

// ── Command metrics ──────────────────────────────────────────────────

// CommandFinished records one external command and its outcome.
func (c *Collector) CommandFinished(ok bool) {
	if c == nil {
		return
	}
	c.commandsRun.Add(1)
	if !ok {
		c.commandsFailed.Add(1)
	}
}

// CommandsRun returns the number of external commands executed.
func (c *Collector) CommandsRun() int64 {
	if c == nil {
		return 0
	}
	return c.commandsRun.Load()
}

// CommandsFailed returns the number of external commands that failed.
func (c *Collector) CommandsFailed() int64 {
	if c == nil {
		return 0
	}
	return c.commandsFailed.Load()
}

// ── Display metrics ──────────────────────────────────────────────────

// RenderFinished records one status render and its outcome.
func (c *Collector) RenderFinished(ok bool) {
	if c == nil {
		return
	}
	c.renders.Add(1)
	if !ok {
		c.renderFailures.Add(1)
	}
}

// Renders returns the number of status renders attempted.
func (c *Collector) Renders() int64 {
	if c == nil {
		return 0
	}
	return c.renders.Load()
}

// RenderFailures returns the number of status renders that failed.
func (c *Collector) RenderFailures() int64 {
	if c == nil {
		return 0
	}
	return c.renderFailures.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime               string `json:"uptime"`
	TransitionsAttempted int64  `json:"transitions_attempted"`
	TransitionsSucceeded int64  `json:"transitions_succeeded"`
	TransitionsFailed    int64  `json:"transitions_failed"`
	Fallbacks            int64  `json:"fallbacks"`
	ProbesOK             int64  `json:"probes_ok"`
	ProbesFailed         int64  `json:"probes_failed"`
	Gestures             int64  `json:"gestures"`
	IntentsDropped       int64  `json:"intents_dropped"`
	CommandsRun          int64  `json:"commands_run"`
	CommandsFailed       int64  `json:"commands_failed"`
	Renders              int64  `json:"renders"`
	RenderFailures       int64  `json:"render_failures"`
	ErrorsTotal          int64  `json:"errors_total"`
	LastProbe            string `json:"last_probe,omitempty"`
	LastError            string `json:"last_error,omitempty"`
	LastErrorMessage     string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:               time.Since(c.startTime).Truncate(time.Second).String(),
		TransitionsAttempted: c.transitionsAttempted.Load(),
		TransitionsSucceeded: c.transitionsSucceeded.Load(),
		TransitionsFailed:    c.transitionsFailed.Load(),
		Fallbacks:            c.fallbacks.Load(),
		ProbesOK:             c.probesOK.Load(),
		ProbesFailed:         c.probesFailed.Load(),
		Gestures:             c.gestures.Load(),
		IntentsDropped:       c.intentsDropped.Load(),
		CommandsRun:          c.commandsRun.Load(),
		CommandsFailed:       c.commandsFailed.Load(),
		Renders:              c.renders.Load(),
		RenderFailures:       c.renderFailures.Load(),
		ErrorsTotal:          c.errorsTotal.Load(),
	}
	if !c.lastProbe.IsZero() {
		s.LastProbe = c.lastProbe.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
