// Package button turns GPIO edges into mode-change intents.
//
// Classification is a pure per-button state machine fed with
// timestamped edges and deadline ticks, so every timing rule is
// testable without hardware.  A press shorter than the hold threshold
// emits Press on release; once the threshold passes, Hold fires
// immediately, without waiting for the finger to lift, and the
// eventual release is swallowed.
package button

import "time"

// Edge is one debounce-raw button transition.  Down follows the
// button, not the voltage; the hardware layer folds the pull-up
// polarity in before edges get here.
type Edge struct {
	Line int
	Down bool
	At   time.Time
}

// GestureKind classifies a completed button interaction.
type GestureKind int

const (
	GesturePress GestureKind = iota
	GestureHold
)

func (k GestureKind) String() string {
	if k == GestureHold {
		return "hold"
	}
	return "press"
}

// Gesture is an interpreted interaction on one button.
type Gesture struct {
	Line int
	Kind GestureKind
	At   time.Time
}

type machineState int

const (
	stateIdle machineState = iota
	statePressed
	stateHoldFired
)

// machine tracks one physical button.  Edges inside the quiet window
// after the last accepted edge are electrical bounce and dropped; the
// window anchor only moves on accepted edges, so a bounce burst cannot
// stretch it.
//
// A glitch shorter than the quiet window can strand the machine in
// statePressed; the next genuine press resynchronises it.
type machine struct {
	line     int
	debounce time.Duration
	hold     time.Duration

	state     machineState
	lastEdge  time.Time
	pressedAt time.Time
}

func newMachine(line int, debounce, hold time.Duration) *machine {
	return &machine{line: line, debounce: debounce, hold: hold}
}

// handle feeds one raw edge through debouncing and the state machine,
// returning the gesture it completes, if any.
func (m *machine) handle(e Edge) (Gesture, bool) {
	if !m.lastEdge.IsZero() && e.At.Sub(m.lastEdge) < m.debounce {
		return Gesture{}, false
	}
	m.lastEdge = e.At

	if e.Down {
		// A press while one is already on record means the release
		// edge was lost; start over from this press.
		m.state = statePressed
		m.pressedAt = e.At
		return Gesture{}, false
	}

	switch m.state {
	case statePressed:
		m.state = stateIdle
		if e.At.Sub(m.pressedAt) >= m.hold {
			// The hold matured but no expiry ran before this release
			// was processed.  Classify it as the hold it was.
			return Gesture{Line: m.line, Kind: GestureHold, At: e.At}, true
		}
		return Gesture{Line: m.line, Kind: GesturePress, At: e.At}, true
	case stateHoldFired:
		// Release after the hold already fired.
		m.state = stateIdle
	}
	return Gesture{}, false
}

// expire fires the hold once the press has lasted the full threshold.
func (m *machine) expire(now time.Time) (Gesture, bool) {
	if m.state != statePressed || now.Sub(m.pressedAt) < m.hold {
		return Gesture{}, false
	}
	m.state = stateHoldFired
	return Gesture{Line: m.line, Kind: GestureHold, At: now}, true
}

// holdDeadline reports when expire would next fire.
func (m *machine) holdDeadline() (time.Time, bool) {
	if m.state != statePressed {
		return time.Time{}, false
	}
	return m.pressedAt.Add(m.hold), true
}
