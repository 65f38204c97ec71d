package api

import "time"

// Public JSON types returned by the API.  These are deliberately
// decoupled from the internal netmode types so the wire format stays
// stable across internal refactors.

// StatusResponse is the top-level payload for GET /api/v1/status.
type StatusResponse struct {
	Mode             string      `json:"mode"`
	ManualOverride   bool        `json:"manual_override"`
	LastTransitionAt string      `json:"last_transition_at,omitempty"`
	LastError        *ErrorView  `json:"last_error,omitempty"`
	Network          NetworkView `json:"network"`
	GeneratedAt      string      `json:"generated_at"`
}

// NetworkView is the last-known view of the wireless interface.  The
// fields come from the cached snapshot, so reading them never waits
// for a mode change in progress.
type NetworkView struct {
	SSID      string `json:"ssid"`
	IPAddress string `json:"ip_address"`
	Signal    int    `json:"signal"`
	Clients   int    `json:"clients"`
	Internet  bool   `json:"internet"`
	CheckedAt string `json:"checked_at,omitempty"`
}

// ErrorView describes the most recent failed transition.
type ErrorView struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// ModeResponse is returned by the POST /api/v1/network endpoints after
// a transition completes.  Mode is the personality the device ended up
// in, which for a no-op request is the one it already had.
type ModeResponse struct {
	Mode           string `json:"mode"`
	ManualOverride bool   `json:"manual_override"`
	Timestamp      string `json:"timestamp"` // RFC3339
}

// APIError is the standard non-2xx payload.
type APIError struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"` // errors.Kind* label when the cause is classified
	Timestamp string `json:"timestamp"`      // RFC3339
}

// TimeNow abstracts time for tests; overridden in tests.
var TimeNow = func() time.Time { return time.Now() }
