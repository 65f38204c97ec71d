package button

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"netmoded/config"
	"netmoded/internal/metrics"
	"netmoded/internal/netmode"
	"netmoded/internal/retry"
	"netmoded/util"
)

// EdgeSource delivers hardware edges.  The Events channel closing
// means the source died; Close releases the underlying lines.
type EdgeSource interface {
	Events() <-chan Edge
	Close() error
}

// Applier consumes classified intents.  The mode controller implements
// it.
type Applier interface {
	Apply(ctx context.Context, intent netmode.Intent, trigger netmode.Trigger) error
}

type binding struct {
	label string
	press netmode.Intent
	hold  netmode.Intent
}

// intentQueueDepth bounds how many gestures may queue behind a
// transition in flight.  Overflow drops the newest gesture with a
// warning; pressing again is the recovery.
const intentQueueDepth = 8

type queuedIntent struct {
	intent netmode.Intent
	label  string
}

// Interpreter owns the per-button machines, the gesture-to-intent
// table, and the queue that decouples classification from transition
// execution.  Gesture handling never blocks: transitions run on the
// consumer goroutine, so a 15 second nmcli call cannot stall edge
// processing.
type Interpreter struct {
	log     *util.Logger
	apply   Applier
	metrics *metrics.Collector

	debounce time.Duration
	hold     time.Duration
	bindings map[int]binding
	machines map[int]*machine
	backoff  retry.Backoff

	intents chan queuedIntent
}

func NewInterpreter(log *util.Logger, apply Applier, m *metrics.Collector, cfg config.ButtonsConfig) (*Interpreter, error) {
	it := &Interpreter{
		log:      log,
		apply:    apply,
		metrics:  m,
		debounce: cfg.Debounce.Std(),
		hold:     cfg.Hold.Std(),
		bindings: make(map[int]binding),
		machines: make(map[int]*machine),
		backoff: retry.Backoff{
			InitialDelay:   time.Second,
			MaxDelay:       30 * time.Second,
			MaxAttempts:    8,
			Jitter:         true,
			ResetThreshold: time.Minute,
		},
		intents: make(chan queuedIntent, intentQueueDepth),
	}
	for _, b := range cfg.Map {
		press, err := netmode.ParseIntent(b.Press)
		if err != nil {
			return nil, fmt.Errorf("button %s press: %w", b.Label, err)
		}
		hold, err := netmode.ParseIntent(b.Hold)
		if err != nil {
			return nil, fmt.Errorf("button %s hold: %w", b.Label, err)
		}
		it.bindings[b.Line] = binding{label: b.Label, press: press, hold: hold}
		it.machines[b.Line] = newMachine(b.Line, it.debounce, it.hold)
	}
	return it, nil
}

// Lines returns the GPIO offsets with at least one binding, sorted,
// for the hardware layer to request.
func (it *Interpreter) Lines() []int {
	lines := make([]int, 0, len(it.machines))
	for line := range it.machines {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Supervise opens the edge source and keeps Run alive, reopening the
// hardware with backoff when it fails.  A source that served for a
// while before dying restarts the backoff from scratch.
func (it *Interpreter) Supervise(ctx context.Context, open func() (EdgeSource, error)) error {
	return it.backoff.Do(ctx, func(attempt int) error {
		src, err := open()
		if err != nil {
			it.log.Warn("gpio unavailable (attempt %d): %v", attempt, err)
			return err
		}
		it.log.Info("listening on %d buttons", len(it.machines))
		if err := it.Run(ctx, src); err != nil {
			it.log.Warn("edge source failed: %v", err)
			return err
		}
		return nil
	})
}

// Run services src until ctx is cancelled or the edge stream ends.  It
// returns nil on cancellation and an error when the source dies, so a
// supervisor can reopen the hardware.
func (it *Interpreter) Run(ctx context.Context, src EdgeSource) error {
	defer src.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		it.consume(ctx, stop)
	}()
	defer wg.Wait()
	defer close(stop)

	// One timer multiplexes every pending hold; only the earliest
	// deadline matters.
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		it.rearm(timer)
		select {
		case <-ctx.Done():
			it.log.Verbose("stopped")
			return nil
		case e, ok := <-src.Events():
			if !ok {
				return fmt.Errorf("edge stream closed")
			}
			it.handleEdge(e)
		case now := <-timer.C:
			it.expire(now)
		}
	}
}

func (it *Interpreter) handleEdge(e Edge) {
	m, ok := it.machines[e.Line]
	if !ok {
		// Only bound lines are requested; anything else is noise.
		return
	}
	if g, ok := m.handle(e); ok {
		it.dispatch(g)
	}
}

func (it *Interpreter) expire(now time.Time) {
	for _, m := range it.machines {
		if g, ok := m.expire(now); ok {
			it.dispatch(g)
		}
	}
}

func (it *Interpreter) rearm(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	if deadline, ok := it.nextDeadline(); ok {
		timer.Reset(time.Until(deadline))
	}
}

func (it *Interpreter) nextDeadline() (time.Time, bool) {
	var next time.Time
	for _, m := range it.machines {
		if d, ok := m.holdDeadline(); ok && (next.IsZero() || d.Before(next)) {
			next = d
		}
	}
	return next, !next.IsZero()
}

func (it *Interpreter) dispatch(g Gesture) {
	b := it.bindings[g.Line]
	var intent netmode.Intent
	switch g.Kind {
	case GesturePress:
		intent = b.press
	case GestureHold:
		intent = b.hold
	}
	it.metrics.GestureClassified()
	if intent == netmode.IntentNone {
		it.log.Debug("button %s %s is not bound", b.label, g.Kind)
		return
	}
	it.log.Info("button %s %s -> %s", b.label, g.Kind, intent)
	select {
	case it.intents <- queuedIntent{intent: intent, label: b.label}:
	default:
		it.metrics.IntentDropped()
		it.log.Warn("intent queue full, dropping %s from button %s", intent, b.label)
	}
}

// consume applies queued intents one at a time.  A slow transition
// blocks this goroutine only; classification keeps running.
//
// stop is checked between intents, so a dying edge source waits for an
// in-flight transition instead of cancelling it.  Queued intents stay
// in the channel for the next Run to drain.
func (it *Interpreter) consume(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case q := <-it.intents:
			if err := it.apply.Apply(ctx, q.intent, netmode.TriggerButton); err != nil {
				it.log.Warn("button %s intent %s failed: %v", q.label, q.intent, err)
			}
		}
	}
}
