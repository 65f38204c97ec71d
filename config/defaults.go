package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultInterface is the wireless interface the daemon manages.
	DefaultInterface = "wlan0"

	// DefaultHotspotProfile is the NetworkManager connection name that
	// `nmcli device wifi hotspot` creates.
	DefaultHotspotProfile = "Hotspot"

	// DefaultActivateTimeout bounds profile activation and teardown.
	// Association plus DHCP on a congested band can take a while.
	DefaultActivateTimeout = 15 * time.Second

	// DefaultQueryTimeout bounds read-only status commands.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultMonitorInterval is the period between connectivity checks.
	DefaultMonitorInterval = 3 * time.Minute

	// DefaultFailureThreshold is how many consecutive failed checks
	// trigger the access-point fallback.
	DefaultFailureThreshold = 3

	// DefaultProbeTimeout bounds a single connectivity probe.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultPingHost is pinged once per monitor tick as an internet
	// reachability hint for the status screen.
	DefaultPingHost = "8.8.8.8"

	// DefaultGPIOChip is the character device the buttons live on.
	DefaultGPIOChip = "gpiochip0"

	// DefaultDebounce is how long after an accepted edge further edges
	// on the same button are ignored as switch bounce.
	DefaultDebounce = 40 * time.Millisecond

	// DefaultHold is the press duration that turns a press into a hold.
	DefaultHold = 1 * time.Second

	// DefaultListen is the HTTP API bind address.  All interfaces, so
	// the device stays controllable at its hotspot address too.
	DefaultListen = ":8080"

	// DefaultDisplayTimeout bounds one render of the status screen.
	// E-Ink refreshes are slow; a full redraw can take most of a minute
	// on three-colour panels.
	DefaultDisplayTimeout = 30 * time.Second

	// DefaultVerbosity is normal logging.  A daemon that starts silent
	// leaves the journal empty exactly when the operator needs it.
	DefaultVerbosity = 1
)

// Default GPIO line offsets for the four frame buttons, top to bottom.
const (
	DefaultLineA = 5
	DefaultLineB = 6
	DefaultLineC = 16
	DefaultLineD = 24
)
