// Package netmode owns the device's network personality: the mode
// state machine, the serialised transition gate, and the fallback
// monitor that keeps the frame reachable when its configured network
// disappears.
//
// Exactly one transition runs at a time.  Status reads never wait for
// a transition in progress; they return the last committed snapshot.
package netmode

import (
	"context"
	"fmt"
	"time"
)

// ── Modes ────────────────────────────────────────────────────────────

// Mode is the device's network personality.
type Mode string

const (
	// ModeUnknown means no recognised profile is known to be active,
	// e.g. right after boot before adoption has run.
	ModeUnknown Mode = "unknown"

	// ModeClient means the device joins the configured WiFi network.
	ModeClient Mode = "client"

	// ModeAccessPoint means the device hosts its own hotspot.
	ModeAccessPoint Mode = "access_point"
)

// Valid reports whether m is one of the three defined modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeUnknown, ModeClient, ModeAccessPoint:
		return true
	}
	return false
}

// Toggled returns the personality a toggle from m lands on.  Unknown
// toggles to client, the reachable-from-home default.
func (m Mode) Toggled() Mode {
	if m == ModeClient {
		return ModeAccessPoint
	}
	return ModeClient
}

// ── State ────────────────────────────────────────────────────────────

// ModeState is the committed view of the mode machine.  All fields are
// values, so a copy is a consistent snapshot.
type ModeState struct {
	Current          Mode
	ManualOverride   bool      // a human chose the current mode; monitor stands down
	LastTransitionAt time.Time // zero until the first completed transition
	LastError        string    // message of the most recent failed transition
	LastErrorKind    string    // errors.Kind* label for LastError
}

// NetInfo is the last-known view of the wireless interface, refreshed
// after successful transitions and on every monitor tick.
type NetInfo struct {
	SSID      string    // joined network or hotspot name
	IPAddress string    // primary IPv4 on the interface
	Signal    int       // link quality percent, client mode only
	Clients   int       // associated stations, access-point mode only
	Internet  bool      // ping reachability hint
	CheckedAt time.Time // zero until the first refresh
}

// ── Triggers and intents ─────────────────────────────────────────────

// Trigger identifies what asked for a transition.
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerButton  Trigger = "button"
	TriggerWeb     Trigger = "web"
	TriggerMonitor Trigger = "monitor"
)

// Manual reports whether the trigger represents a human decision.
// Manual transitions set the override that suspends the monitor.
func (t Trigger) Manual() bool {
	return t == TriggerButton || t == TriggerWeb
}

// Intent is a classified request for the controller.
type Intent int

const (
	IntentNone Intent = iota
	IntentToggle
	IntentForceClient
	IntentForceAccessPoint
	IntentReportStatus
)

// String returns the config-file spelling of the intent.
func (i Intent) String() string {
	switch i {
	case IntentToggle:
		return "toggle"
	case IntentForceClient:
		return "client"
	case IntentForceAccessPoint:
		return "ap"
	case IntentReportStatus:
		return "status"
	}
	return "none"
}

// ParseIntent maps a config-file string to an Intent.  The empty
// string parses to IntentNone.
func ParseIntent(s string) (Intent, error) {
	switch s {
	case "":
		return IntentNone, nil
	case "toggle":
		return IntentToggle, nil
	case "client":
		return IntentForceClient, nil
	case "ap":
		return IntentForceAccessPoint, nil
	case "status":
		return IntentReportStatus, nil
	}
	return IntentNone, fmt.Errorf("unknown intent %q", s)
}

// ── Events ───────────────────────────────────────────────────────────

// EventKind says what an Event describes.
type EventKind string

const (
	// EventTransition is a completed transition attempt; Err reports
	// whether it succeeded.
	EventTransition EventKind = "transition"

	// EventAdopted means startup found a recognised profile already
	// active and recorded it without touching the network.
	EventAdopted EventKind = "adopted"

	// EventStatus is an explicit status report request, e.g. from the
	// status button.
	EventStatus EventKind = "status"
)

// Event is published to subscribers after every committed state change
// and on status requests.
type Event struct {
	Kind    EventKind
	State   ModeState
	Info    NetInfo
	Trigger Trigger
	Err     error // non-nil for failed transition attempts
}

// Notifier receives controller events.  The notify package provides
// the production implementation.
type Notifier interface {
	Publish(Event)
}

// ── Backend ──────────────────────────────────────────────────────────

// Backend drives the operating system's network layer.  The controller
// serialises mutating calls; queries may run concurrently with them.
type Backend interface {
	// ActivateClient brings up the configured client profile.
	ActivateClient(ctx context.Context) error

	// ActivateHotspot brings up the configured hotspot profile.
	ActivateHotspot(ctx context.Context) error

	// Deactivate takes down the profile backing the given mode.
	Deactivate(ctx context.Context, mode Mode) error

	// Detect reports which personality is active right now, or
	// ModeUnknown when no recognised profile is up.
	Detect(ctx context.Context) (Mode, error)

	// Probe reports whether the interface currently holds a usable
	// address, i.e. client connectivity looks healthy.
	Probe(ctx context.Context) (bool, error)

	// Info collects the status-screen view for the given mode.
	Info(ctx context.Context, mode Mode) (NetInfo, error)
}
