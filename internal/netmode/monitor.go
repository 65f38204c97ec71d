package netmode

import (
	"context"
	"time"

	nmerr "netmoded/internal/errors"
	"netmoded/internal/metrics"
	"netmoded/util"
)

// Monitor is the connectivity watchdog.  In client (or unknown) mode
// it probes the interface every interval and falls back to the access
// point after threshold consecutive failures, so a frame whose home
// network vanished is reachable again without anyone pressing a
// button.  In access-point mode it periodically retries the client
// network instead.  A manual override suspends both behaviours.
type Monitor struct {
	log       *util.Logger
	ctrl      *Controller
	backend   Backend
	metrics   *metrics.Collector
	interval  time.Duration
	threshold int

	failures int // consecutive failed probes; only Run's goroutine touches it
}

// NewMonitor wires a monitor to the controller it steers.  m may be
// nil.
func NewMonitor(log *util.Logger, ctrl *Controller, backend Backend, m *metrics.Collector, interval time.Duration, threshold int) *Monitor {
	return &Monitor{
		log:       log,
		ctrl:      ctrl,
		backend:   backend,
		metrics:   m,
		interval:  interval,
		threshold: threshold,
	}
}

// Run ticks until ctx is cancelled.  The first check happens one full
// interval after start, giving the startup transition time to settle.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("checking connectivity every %v, access-point fallback after %d failures",
		m.interval, m.threshold)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Verbose("stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick runs one watchdog pass.
func (m *Monitor) tick(ctx context.Context) {
	state, _ := m.ctrl.Status()
	m.ctrl.RefreshInfo(ctx)

	if state.ManualOverride {
		m.failures = 0
		m.log.Debug("manual override active, standing down")
		return
	}

	if state.Current == ModeAccessPoint {
		m.failures = 0
		m.retryClient(ctx)
		return
	}

	// Client or unknown: verify connectivity.
	ok, err := m.backend.Probe(ctx)
	if err != nil {
		m.log.Verbose("probe failed: %v", err)
		ok = false
	}
	m.metrics.ProbeResult(ok)

	if ok {
		if m.failures > 0 {
			m.log.Info("connectivity restored after %d failed checks", m.failures)
		}
		m.failures = 0
		return
	}

	m.failures++
	m.log.Warn("connectivity check failed (%d/%d)", m.failures, m.threshold)
	if m.failures < m.threshold {
		return
	}

	m.log.Warn("connectivity lost, switching to access point")
	m.metrics.FallbackTriggered()
	switch err := m.ctrl.TryTransitionTo(ctx, ModeAccessPoint, TriggerMonitor); {
	case err == nil:
		m.failures = 0
	case nmerr.Is(err, nmerr.ErrBusy):
		// Someone else is mid-transition; their outcome decides what
		// the next tick sees.
		m.log.Verbose("fallback skipped, transition in progress")
	default:
		// Keep the streak so the fallback is retried next tick.
		m.log.Error("fallback failed: %v", err)
	}
}

// retryClient attempts to leave automatic access-point mode.
func (m *Monitor) retryClient(ctx context.Context) {
	m.log.Verbose("in fallback access point, retrying client network")
	switch err := m.ctrl.TryTransitionTo(ctx, ModeClient, TriggerMonitor); {
	case err == nil:
	case nmerr.Is(err, nmerr.ErrBusy):
		m.log.Verbose("client retry skipped, transition in progress")
	default:
		m.log.Verbose("client network still unavailable: %v", err)
	}
}
