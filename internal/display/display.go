// Package display feeds mode changes to an external status renderer.
//
// The daemon does not draw anything itself.  Each frame is serialised
// to JSON and piped to a configurable command (the e-ink driver, an
// OLED script, or just jq during development), which owns pixels,
// fonts, and refresh timing.  Rendering e-ink is slow, so the listener
// coalesces bursts of events and only ever draws the newest state.
package display

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"netmoded/internal/metrics"
	"netmoded/internal/netmode"
	"netmoded/internal/runner"
	"netmoded/util"
)

// Frame is the JSON document handed to the renderer command.
type Frame struct {
	Mode      string    `json:"mode"`
	SSID      string    `json:"ssid,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	Signal    int       `json:"signal,omitempty"`
	Clients   int       `json:"clients,omitempty"`
	Internet  bool      `json:"internet"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// frameFor flattens an event into the renderer's view of the world.
func frameFor(e netmode.Event) Frame {
	f := Frame{
		Mode:      string(e.State.Current),
		SSID:      e.Info.SSID,
		IPAddress: e.Info.IPAddress,
		Signal:    e.Info.Signal,
		Clients:   e.Info.Clients,
		Internet:  e.Info.Internet,
		At:        time.Now(),
	}
	if e.Err != nil {
		f.ErrorKind = e.State.LastErrorKind
		f.Message = "mode switch failed"
	}
	return f
}

// Renderer draws one frame.
type Renderer interface {
	Render(ctx context.Context, f Frame) error
}

// CommandRenderer pipes the frame, as JSON, to an external command's
// stdin.
type CommandRenderer struct {
	log     *util.Logger
	run     runner.Runner
	argv    []string
	timeout time.Duration
}

func NewCommandRenderer(log *util.Logger, run runner.Runner, argv []string, timeout time.Duration) *CommandRenderer {
	return &CommandRenderer{log: log, run: run, argv: argv, timeout: timeout}
}

func (r *CommandRenderer) Render(ctx context.Context, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	r.log.Debug("rendering %s frame", f.Mode)
	_, err = r.run.Run(ctx, runner.Spec{
		Name:    r.argv[0],
		Args:    r.argv[1:],
		Stdin:   payload,
		Timeout: r.timeout,
	})
	return err
}

// Listener subscribes to the event bus and drives a Renderer from its
// own goroutine, so a slow draw never extends the transition gate.
type Listener struct {
	log     *util.Logger
	r       Renderer
	metrics *metrics.Collector
	frames  chan Frame
}

func NewListener(log *util.Logger, r Renderer, m *metrics.Collector) *Listener {
	return &Listener{
		log:     log,
		r:       r,
		metrics: m,
		frames:  make(chan Frame, 1),
	}
}

// Notify is the bus callback.  It never blocks: when the renderer is
// behind, the queued frame is replaced with this newer one.
func (l *Listener) Notify(e netmode.Event) {
	f := frameFor(e)
	for {
		select {
		case l.frames <- f:
			return
		default:
		}
		// Full; evict the stale frame and try again.
		select {
		case <-l.frames:
			l.log.Debug("dropped a stale frame")
		default:
		}
	}
}

// Run renders queued frames until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.log.Verbose("display listener stopped")
			return
		case f := <-l.frames:
			err := l.r.Render(ctx, f)
			l.metrics.RenderFinished(err == nil)
			if err != nil {
				l.log.Warn("render failed: %v", err)
			}
		}
	}
}
