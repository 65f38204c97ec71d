package netmode

import (
	"context"
	"fmt"
	"sync"
	"time"

	nmerr "netmoded/internal/errors"
	"netmoded/internal/metrics"
	"netmoded/util"
)

// Controller serialises mode transitions and owns the committed state.
//
// Two locks with distinct jobs: gate serialises transitions end-to-end,
// including the slow backend calls; mu guards the snapshot fields so
// Status never waits behind a transition in flight.
type Controller struct {
	log     *util.Logger
	backend Backend
	notify  Notifier
	metrics *metrics.Collector

	gate sync.Mutex

	mu    sync.RWMutex
	state ModeState
	info  NetInfo
}

// NewController returns a Controller starting in ModeUnknown with the
// manual override cleared.  notify and m may be nil.
func NewController(log *util.Logger, backend Backend, notify Notifier, m *metrics.Collector) *Controller {
	return &Controller{
		log:     log,
		backend: backend,
		notify:  notify,
		metrics: m,
		state:   ModeState{Current: ModeUnknown},
	}
}

// Status returns the committed state and the cached interface view.
// It never blocks on a transition in progress.
func (c *Controller) Status() (ModeState, NetInfo) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.info
}

// TransitionTo switches the device to target, waiting for any
// transition already in flight to finish first.
func (c *Controller) TransitionTo(ctx context.Context, target Mode, trigger Trigger) error {
	c.gate.Lock()
	defer c.gate.Unlock()
	return c.transitionLocked(ctx, target, trigger)
}

// TryTransitionTo is TransitionTo except that it returns ErrBusy
// immediately when another transition holds the gate.  The HTTP layer
// and the monitor use this so neither queues up behind a slow switch.
func (c *Controller) TryTransitionTo(ctx context.Context, target Mode, trigger Trigger) error {
	if !c.gate.TryLock() {
		return nmerr.ErrBusy
	}
	defer c.gate.Unlock()
	return c.transitionLocked(ctx, target, trigger)
}

// Toggle switches to the opposite personality.  The target is derived
// under the gate, so concurrent toggles flip cleanly instead of racing
// to the same stale target.
func (c *Controller) Toggle(ctx context.Context, trigger Trigger) error {
	c.gate.Lock()
	defer c.gate.Unlock()
	return c.transitionLocked(ctx, c.current().Toggled(), trigger)
}

// TryToggle is Toggle with ErrBusy instead of waiting.
func (c *Controller) TryToggle(ctx context.Context, trigger Trigger) error {
	if !c.gate.TryLock() {
		return nmerr.ErrBusy
	}
	defer c.gate.Unlock()
	return c.transitionLocked(ctx, c.current().Toggled(), trigger)
}

// Apply executes a classified intent.  Button and startup callers use
// it; blocking on the gate is fine there, a human gesture must not be
// dropped just because a switch is mid-flight.
func (c *Controller) Apply(ctx context.Context, intent Intent, trigger Trigger) error {
	switch intent {
	case IntentToggle:
		return c.Toggle(ctx, trigger)
	case IntentForceClient:
		return c.TransitionTo(ctx, ModeClient, trigger)
	case IntentForceAccessPoint:
		return c.TransitionTo(ctx, ModeAccessPoint, trigger)
	case IntentReportStatus:
		c.ReportStatus(trigger)
		return nil
	case IntentNone:
		return nil
	}
	return fmt.Errorf("unhandled intent %d", intent)
}

// ReportStatus publishes the current snapshot without touching the
// network, so a status render never contends with a transition.
func (c *Controller) ReportStatus(trigger Trigger) {
	state, info := c.Status()
	c.publish(Event{Kind: EventStatus, State: state, Info: info, Trigger: trigger})
}

// Adopt aligns the recorded mode with whatever personality the device
// booted into.  If a recognised profile is already active it is
// recorded without touching the network; otherwise a client transition
// is attempted.  Errors are returned for logging but are not fatal:
// the mode stays unknown and the monitor takes over.
func (c *Controller) Adopt(ctx context.Context) error {
	c.gate.Lock()
	defer c.gate.Unlock()

	detected, err := c.backend.Detect(ctx)
	if err != nil {
		c.log.Warn("could not detect active profile: %v", err)
		detected = ModeUnknown
	}
	if detected != ModeUnknown {
		c.mu.Lock()
		c.state.Current = detected
		snap := c.state
		c.mu.Unlock()

		c.log.Info("adopted active %s mode", detected)
		info := c.refreshInfo(ctx)
		c.publish(Event{Kind: EventAdopted, State: snap, Info: info, Trigger: TriggerStartup})
		return nil
	}
	return c.transitionLocked(ctx, ModeClient, TriggerStartup)
}

// RefreshInfo queries the backend for the interface view and caches
// it.  The monitor calls this every tick; failures keep the previous
// cache.
func (c *Controller) RefreshInfo(ctx context.Context) NetInfo {
	return c.refreshInfo(ctx)
}

// ── internals ────────────────────────────────────────────────────────

// current reads the committed mode.  Callers inside the gate still go
// through mu, since Status readers run concurrently.
func (c *Controller) current() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Current
}

// transitionLocked runs one transition attempt.  The gate must be held.
func (c *Controller) transitionLocked(ctx context.Context, target Mode, trigger Trigger) error {
	if target != ModeClient && target != ModeAccessPoint {
		return fmt.Errorf("cannot transition to %q", target)
	}

	cur := c.current()
	if cur == target {
		c.log.Verbose("already in %s mode, nothing to do", target)
		return nil
	}

	c.metrics.TransitionAttempted()
	c.log.Info("switching %s -> %s (%s)", cur, target, trigger)

	if err := c.perform(ctx, cur, target); err != nil {
		terr := nmerr.WrapTransition(string(cur), string(target), string(trigger), err)
		c.metrics.TransitionFailed()
		c.metrics.RecordError(terr.Error())

		c.mu.Lock()
		c.state.LastError = terr.Error()
		c.state.LastErrorKind = nmerr.Kind(err)
		snap := c.state
		info := c.info
		c.mu.Unlock()

		c.log.Error("%v", terr)
		c.publish(Event{Kind: EventTransition, State: snap, Info: info, Trigger: trigger, Err: terr})
		return terr
	}

	c.mu.Lock()
	c.state.Current = target
	c.state.LastTransitionAt = time.Now()
	c.state.LastError = ""
	c.state.LastErrorKind = ""
	// A manual choice sticks until a later automatic switch succeeds.
	c.state.ManualOverride = trigger.Manual()
	snap := c.state
	c.mu.Unlock()

	c.metrics.TransitionSucceeded()
	info := c.refreshInfo(ctx)
	c.publish(Event{Kind: EventTransition, State: snap, Info: info, Trigger: trigger})
	c.log.Info("now in %s mode", target)
	return nil
}

// perform does the backend work: take the old personality down, bring
// the new one up.  When activation fails after a successful teardown
// it restores the previous profile so the device is never left with
// neither personality; the recorded mode is the caller's concern and
// stays unchanged either way.
func (c *Controller) perform(ctx context.Context, cur, target Mode) error {
	if cur != ModeUnknown {
		if err := c.backend.Deactivate(ctx, cur); err != nil {
			return err
		}
	}
	if err := c.activate(ctx, target); err != nil {
		if cur != ModeUnknown {
			if rbErr := c.activate(ctx, cur); rbErr != nil {
				c.log.Warn("restore of %s after failed switch also failed: %v", cur, rbErr)
			} else {
				c.log.Warn("activation of %s failed, restored %s", target, cur)
			}
		}
		return err
	}
	return nil
}

func (c *Controller) activate(ctx context.Context, m Mode) error {
	switch m {
	case ModeClient:
		return c.backend.ActivateClient(ctx)
	case ModeAccessPoint:
		return c.backend.ActivateHotspot(ctx)
	}
	return fmt.Errorf("cannot activate %q", m)
}

func (c *Controller) refreshInfo(ctx context.Context) NetInfo {
	cur := c.current()
	info, err := c.backend.Info(ctx, cur)
	if err != nil {
		c.log.Verbose("interface info refresh failed: %v", err)
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.info
	}
	info.CheckedAt = time.Now()

	c.mu.Lock()
	c.info = info
	c.mu.Unlock()
	return info
}

func (c *Controller) publish(e Event) {
	if c.notify == nil {
		return
	}
	c.notify.Publish(e)
}
