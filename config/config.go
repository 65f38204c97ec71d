// Package config defines the runtime configuration for netmoded and
// layers it from four sources.  Precedence order (highest wins):
//
//  1. CLI flags   (cmd/root.go)
//  2. Environment variables   (loader.go, NETMODED_ prefix)
//  3. YAML config file   (loader.go)
//  4. Defaults   (defaults.go)
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	nmerr "netmoded/internal/errors"
)

// Config holds every tuneable for one daemon run.
type Config struct {
	// ── Network ──────────────────────────────────────────────────────
	Interface      string `yaml:"interface"`       // wireless interface, e.g. wlan0
	ClientProfile  string `yaml:"client_profile"`  // NetworkManager profile for client mode
	HotspotProfile string `yaml:"hotspot_profile"` // NetworkManager profile for access-point mode

	// ── Command timeouts ─────────────────────────────────────────────
	ActivateTimeout Duration `yaml:"activate_timeout"` // profile activation / teardown
	QueryTimeout    Duration `yaml:"query_timeout"`    // read-only status commands

	// ── Subsystems ───────────────────────────────────────────────────
	Monitor MonitorConfig `yaml:"monitor"`
	Buttons ButtonsConfig `yaml:"buttons"`
	Display DisplayConfig `yaml:"display"`

	// ── HTTP API ─────────────────────────────────────────────────────
	Listen string `yaml:"listen"` // bind address, e.g. ":8080"

	// ── Output ───────────────────────────────────────────────────────
	Verbose int `yaml:"verbose"`
}

// MonitorConfig controls the connectivity watchdog.
type MonitorConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Interval         Duration `yaml:"interval"`          // time between checks
	FailureThreshold int      `yaml:"failure_threshold"` // consecutive failures before fallback
	ProbeTimeout     Duration `yaml:"probe_timeout"`     // per-probe deadline
	PingHost         string   `yaml:"ping_host"`         // internet reachability hint target
}

// ButtonsConfig controls the GPIO button interpreter.
type ButtonsConfig struct {
	Enabled  bool      `yaml:"enabled"`
	Chip     string    `yaml:"chip"` // gpiochip device name
	Debounce Duration  `yaml:"debounce"`
	Hold     Duration  `yaml:"hold"`
	Map      []Binding `yaml:"map"`
}

// Binding maps one GPIO line to intents.  Press fires on release of a
// short press; Hold fires the moment the hold threshold elapses.
// Either may be empty.
type Binding struct {
	Line  int    `yaml:"line"`  // line offset on the chip
	Label string `yaml:"label"` // name used in logs, e.g. "A"
	Press string `yaml:"press"` // one of: toggle, client, ap, status
	Hold  string `yaml:"hold"`  // ditto
}

// DisplayConfig controls the external status-screen renderer.
type DisplayConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command []string `yaml:"command"` // renderer argv; frame JSON arrives on stdin
	Timeout Duration `yaml:"timeout"`
}

// ── Durations ────────────────────────────────────────────────────────

// Duration wraps time.Duration so YAML values can be written in the
// usual "40ms" / "3m" notation.
type Duration time.Duration

// UnmarshalYAML implements custom YAML unmarshalling via
// time.ParseDuration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in time.Duration notation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ── Defaults ─────────────────────────────────────────────────────────

// Default returns a Config populated from defaults.go, including the
// standard four-button map of the frame.
func Default() *Config {
	return &Config{
		Interface:       DefaultInterface,
		HotspotProfile:  DefaultHotspotProfile,
		ActivateTimeout: Duration(DefaultActivateTimeout),
		QueryTimeout:    Duration(DefaultQueryTimeout),
		Monitor: MonitorConfig{
			Enabled:          true,
			Interval:         Duration(DefaultMonitorInterval),
			FailureThreshold: DefaultFailureThreshold,
			ProbeTimeout:     Duration(DefaultProbeTimeout),
			PingHost:         DefaultPingHost,
		},
		Buttons: ButtonsConfig{
			Enabled:  true,
			Chip:     DefaultGPIOChip,
			Debounce: Duration(DefaultDebounce),
			Hold:     Duration(DefaultHold),
			Map: []Binding{
				{Line: DefaultLineA, Label: "A", Press: "toggle"},
				{Line: DefaultLineB, Label: "B", Press: "status"},
				{Line: DefaultLineC, Label: "C", Hold: "client"},
				{Line: DefaultLineD, Label: "D", Hold: "ap"},
			},
		},
		Display: DisplayConfig{
			Timeout: Duration(DefaultDisplayTimeout),
		},
		Listen:  DefaultListen,
		Verbose: DefaultVerbosity,
	}
}

// ── Validation ───────────────────────────────────────────────────────

// validIntent lists the accepted values for Binding.Press and
// Binding.Hold.  The empty string means "nothing bound".
var validIntent = map[string]bool{
	"":       true,
	"toggle": true,
	"client": true,
	"ap":     true,
	"status": true,
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return &nmerr.ConfigError{
			Field:   "interface",
			Message: "required",
			Hint:    "list wireless interfaces with `nmcli device status`",
		}
	}
	if c.ClientProfile == "" {
		return &nmerr.ConfigError{
			Field:   "client_profile",
			Message: "required",
			Hint:    "list provisioned profiles with `nmcli -t -f NAME connection show`",
		}
	}
	if c.HotspotProfile == "" {
		return &nmerr.ConfigError{
			Field:   "hotspot_profile",
			Message: "required",
			Hint:    "create one with `nmcli device wifi hotspot`, then name it here",
		}
	}
	if c.ActivateTimeout <= 0 {
		return &nmerr.ConfigError{
			Field:   "activate_timeout",
			Value:   c.ActivateTimeout.Std().String(),
			Message: "must be positive",
		}
	}
	if c.QueryTimeout <= 0 {
		return &nmerr.ConfigError{
			Field:   "query_timeout",
			Value:   c.QueryTimeout.Std().String(),
			Message: "must be positive",
		}
	}
	if c.Listen == "" {
		return &nmerr.ConfigError{
			Field:   "listen",
			Message: "required",
			Hint:    "use \":8080\" to listen on all interfaces",
		}
	}

	if c.Monitor.Enabled {
		if err := c.Monitor.validate(); err != nil {
			return err
		}
	}
	if c.Buttons.Enabled {
		if err := c.Buttons.validate(); err != nil {
			return err
		}
	}
	if c.Display.Enabled {
		if err := c.Display.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (m *MonitorConfig) validate() error {
	if m.Interval <= 0 {
		return &nmerr.ConfigError{
			Field:   "monitor.interval",
			Value:   m.Interval.Std().String(),
			Message: "must be positive",
		}
	}
	if m.FailureThreshold < 1 {
		return &nmerr.ConfigError{
			Field:   "monitor.failure_threshold",
			Value:   m.FailureThreshold,
			Message: "must be at least 1",
			Hint:    "3 tolerates a flaky router reboot without flapping into hotspot mode",
		}
	}
	if m.ProbeTimeout <= 0 {
		return &nmerr.ConfigError{
			Field:   "monitor.probe_timeout",
			Value:   m.ProbeTimeout.Std().String(),
			Message: "must be positive",
		}
	}
	if m.ProbeTimeout >= m.Interval {
		return &nmerr.ConfigError{
			Field:   "monitor.probe_timeout",
			Value:   m.ProbeTimeout.Std().String(),
			Message: "must be shorter than monitor.interval",
			Hint:    "probes must finish before the next check starts",
		}
	}
	if m.PingHost == "" {
		return &nmerr.ConfigError{
			Field:   "monitor.ping_host",
			Message: "required when the monitor is enabled",
		}
	}
	return nil
}

func (b *ButtonsConfig) validate() error {
	if b.Chip == "" {
		return &nmerr.ConfigError{
			Field:   "buttons.chip",
			Message: "required when buttons are enabled",
			Hint:    "usually gpiochip0; list chips with `gpiodetect`",
		}
	}
	if b.Debounce <= 0 {
		return &nmerr.ConfigError{
			Field:   "buttons.debounce",
			Value:   b.Debounce.Std().String(),
			Message: "must be positive",
		}
	}
	if b.Hold <= b.Debounce {
		return &nmerr.ConfigError{
			Field:   "buttons.hold",
			Value:   b.Hold.Std().String(),
			Message: "must be longer than buttons.debounce",
			Hint:    "a hold shorter than the debounce window could never be observed",
		}
	}
	if len(b.Map) == 0 {
		return &nmerr.ConfigError{
			Field:   "buttons.map",
			Message: "at least one binding is required when buttons are enabled",
		}
	}
	seen := make(map[int]string, len(b.Map))
	for _, bind := range b.Map {
		field := fmt.Sprintf("buttons.map[%s]", bind.Label)
		if bind.Line < 0 {
			return &nmerr.ConfigError{
				Field:   field + ".line",
				Value:   bind.Line,
				Message: "must be a non-negative line offset",
			}
		}
		if bind.Label == "" {
			return &nmerr.ConfigError{
				Field:   fmt.Sprintf("buttons.map[line %d].label", bind.Line),
				Message: "required",
			}
		}
		if prev, dup := seen[bind.Line]; dup {
			return &nmerr.ConfigError{
				Field:   field + ".line",
				Value:   bind.Line,
				Message: fmt.Sprintf("already bound to button %s", prev),
			}
		}
		seen[bind.Line] = bind.Label
		if bind.Press == "" && bind.Hold == "" {
			return &nmerr.ConfigError{
				Field:   field,
				Message: "binds neither press nor hold",
				Hint:    "set press:, hold:, or drop the entry",
			}
		}
		if !validIntent[bind.Press] {
			return &nmerr.ConfigError{
				Field:   field + ".press",
				Value:   bind.Press,
				Message: "unknown intent",
				Hint:    "valid intents: toggle, client, ap, status",
			}
		}
		if !validIntent[bind.Hold] {
			return &nmerr.ConfigError{
				Field:   field + ".hold",
				Value:   bind.Hold,
				Message: "unknown intent",
				Hint:    "valid intents: toggle, client, ap, status",
			}
		}
	}
	return nil
}

func (d *DisplayConfig) validate() error {
	if len(d.Command) == 0 {
		return &nmerr.ConfigError{
			Field:   "display.command",
			Message: "required when the display is enabled",
			Hint:    "argv of the renderer, e.g. [\"inky-render\", \"--layout\", \"status\"]",
		}
	}
	if d.Timeout <= 0 {
		return &nmerr.ConfigError{
			Field:   "display.timeout",
			Value:   d.Timeout.Std().String(),
			Message: "must be positive",
		}
	}
	return nil
}
