package config

// loader.go - configuration loading from the YAML file and from
// environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (LoadFromEnv)
//   3. YAML config file  (Load)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	nmerr "netmoded/internal/errors"
)

// Load reads the YAML file at path layered over Default().  An empty
// path skips the file entirely; a missing file at an explicit path is
// an error, since the operator asked for it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &nmerr.ConfigError{
			Field:   "config",
			Value:   path,
			Message: err.Error(),
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &nmerr.ConfigError{
			Field:   "config",
			Value:   path,
			Message: "not valid YAML: " + err.Error(),
		}
	}
	return cfg, nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the NETMODED_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("NETMODED_INTERFACE"); v != "" {
		cfg.Interface = v
	}
	if v := os.Getenv("NETMODED_CLIENT_PROFILE"); v != "" {
		cfg.ClientProfile = v
	}
	if v := os.Getenv("NETMODED_HOTSPOT_PROFILE"); v != "" {
		cfg.HotspotProfile = v
	}
	if v := os.Getenv("NETMODED_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := envInt("NETMODED_ACTIVATE_TIMEOUT"); v > 0 {
		cfg.ActivateTimeout = Duration(secondsDuration(v))
	}
	if v := envInt("NETMODED_QUERY_TIMEOUT"); v > 0 {
		cfg.QueryTimeout = Duration(secondsDuration(v))
	}

	// Monitor
	if envBool("NETMODED_NO_MONITOR") {
		cfg.Monitor.Enabled = false
	}
	if v := envInt("NETMODED_MONITOR_INTERVAL"); v > 0 {
		cfg.Monitor.Interval = Duration(secondsDuration(v))
	}
	if v := envInt("NETMODED_FAILURE_THRESHOLD"); v > 0 {
		cfg.Monitor.FailureThreshold = v
	}
	if v := os.Getenv("NETMODED_PING_HOST"); v != "" {
		cfg.Monitor.PingHost = v
	}

	// Buttons
	if envBool("NETMODED_NO_BUTTONS") {
		cfg.Buttons.Enabled = false
	}
	if v := os.Getenv("NETMODED_GPIO_CHIP"); v != "" {
		cfg.Buttons.Chip = v
	}

	// Output
	if v := envInt("NETMODED_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
