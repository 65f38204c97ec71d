// Package nmcli implements the network backend on top of
// NetworkManager's command line client, with iw filling in the
// wireless details nmcli does not expose.
//
// Activation and deactivation work on named connection profiles.  The
// client profile joins the configured WiFi network; the hotspot
// profile turns the device into its own access point.
package nmcli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	nmerr "netmoded/internal/errors"
	"netmoded/internal/netmode"
	"netmoded/internal/runner"
	"netmoded/util"
)

// Options carries the interface and profile names plus the per-class
// command deadlines.
type Options struct {
	Interface      string
	ClientProfile  string
	HotspotProfile string

	// ActivateTimeout bounds profile up/down commands, which wait for
	// DHCP and can take a while.  QueryTimeout bounds read-only
	// lookups.  ProbeTimeout bounds the connectivity probe and the
	// internet ping.
	ActivateTimeout time.Duration
	QueryTimeout    time.Duration
	ProbeTimeout    time.Duration

	// PingHost is the address used for the internet reachability
	// hint.  Empty disables the ping.
	PingHost string
}

// Backend drives NetworkManager for one wireless interface.
type Backend struct {
	log  *util.Logger
	run  runner.Runner
	opts Options
}

func NewBackend(log *util.Logger, run runner.Runner, opts Options) *Backend {
	return &Backend{log: log, run: run, opts: opts}
}

// ── Activation ───────────────────────────────────────────────────────

func (b *Backend) ActivateClient(ctx context.Context) error {
	return b.activate(ctx, b.opts.ClientProfile)
}

func (b *Backend) ActivateHotspot(ctx context.Context) error {
	return b.activate(ctx, b.opts.HotspotProfile)
}

func (b *Backend) activate(ctx context.Context, profile string) error {
	b.log.Verbose("bringing up connection %q", profile)
	_, err := b.run.Run(ctx, runner.Spec{
		Name:    "nmcli",
		Args:    []string{"connection", "up", profile},
		Timeout: b.opts.ActivateTimeout,
	})
	return b.classify(err)
}

// Deactivate takes down the profile backing mode.  A profile that is
// already down counts as deactivated.
func (b *Backend) Deactivate(ctx context.Context, mode netmode.Mode) error {
	profile, err := b.profileFor(mode)
	if err != nil {
		return err
	}
	b.log.Verbose("taking down connection %q", profile)
	_, err = b.run.Run(ctx, runner.Spec{
		Name:    "nmcli",
		Args:    []string{"connection", "down", profile},
		Timeout: b.opts.ActivateTimeout,
	})
	if err != nil {
		var execErr *nmerr.ExecError
		if nmerr.As(err, &execErr) && strings.Contains(execErr.Stderr, "not an active connection") {
			b.log.Verbose("connection %q was already down", profile)
			return nil
		}
		return b.classify(err)
	}
	return nil
}

func (b *Backend) profileFor(mode netmode.Mode) (string, error) {
	switch mode {
	case netmode.ModeClient:
		return b.opts.ClientProfile, nil
	case netmode.ModeAccessPoint:
		return b.opts.HotspotProfile, nil
	}
	return "", fmt.Errorf("no connection profile for mode %q", mode)
}

// classify lifts nmcli's "unknown connection" complaint into the
// missing-profile sentinel so callers can tell a typo in the config
// from a radio problem.
func (b *Backend) classify(err error) error {
	if err == nil {
		return nil
	}
	var execErr *nmerr.ExecError
	if nmerr.As(err, &execErr) && strings.Contains(execErr.Stderr, "unknown connection") {
		return fmt.Errorf("%w: %w", nmerr.ErrNoSuchProfile, err)
	}
	return err
}

// ── Queries ──────────────────────────────────────────────────────────

// Detect reports which of the two configured profiles is active on the
// interface right now.
func (b *Backend) Detect(ctx context.Context) (netmode.Mode, error) {
	out, err := b.nmcli(ctx, "-g", "GENERAL.CONNECTION", "device", "show", b.opts.Interface)
	if err != nil {
		return netmode.ModeUnknown, err
	}
	active := parseActiveConnection(out.Stdout)
	switch active {
	case b.opts.ClientProfile:
		return netmode.ModeClient, nil
	case b.opts.HotspotProfile:
		return netmode.ModeAccessPoint, nil
	case "":
		return netmode.ModeUnknown, nil
	}
	b.log.Verbose("interface is on unmanaged connection %q", active)
	return netmode.ModeUnknown, nil
}

// Probe reports whether the interface holds a routable IPv4 address.
// A link-local 169.254 address from a failed DHCP round does not
// count.
func (b *Backend) Probe(ctx context.Context) (bool, error) {
	out, err := b.run.Run(ctx, runner.Spec{
		Name:    "nmcli",
		Args:    []string{"-g", "IP4.ADDRESS", "device", "show", b.opts.Interface},
		Timeout: b.opts.ProbeTimeout,
	})
	if err != nil {
		return false, b.classify(err)
	}
	return hasUsableAddress(out.Stdout), nil
}

// Info collects the status view for mode.  Secondary lookups degrade
// to zero values; only a failed address lookup is an error.
func (b *Backend) Info(ctx context.Context, mode netmode.Mode) (netmode.NetInfo, error) {
	var info netmode.NetInfo

	out, err := b.nmcli(ctx, "-g", "IP4.ADDRESS", "device", "show", b.opts.Interface)
	if err != nil {
		return info, err
	}
	info.IPAddress = firstAddress(out.Stdout)

	switch mode {
	case netmode.ModeClient:
		if link, err := b.iw(ctx, "dev", b.opts.Interface, "link"); err != nil {
			b.log.Verbose("link details unavailable: %v", err)
		} else if ssid, dbm, ok := parseLink(link.Stdout); ok {
			info.SSID = ssid
			info.Signal = signalPercent(dbm)
		}
		info.Internet = b.ping(ctx)
	case netmode.ModeAccessPoint:
		if out, err := b.nmcli(ctx, "-g", "802-11-wireless.ssid", "connection", "show", b.opts.HotspotProfile); err != nil {
			b.log.Verbose("hotspot ssid unavailable: %v", err)
		} else {
			info.SSID = strings.TrimSpace(out.Stdout)
		}
		if dump, err := b.iw(ctx, "dev", b.opts.Interface, "station", "dump"); err != nil {
			b.log.Verbose("station dump unavailable: %v", err)
		} else {
			info.Clients = countStations(dump.Stdout)
		}
	}
	return info, nil
}

func (b *Backend) ping(ctx context.Context) bool {
	if b.opts.PingHost == "" {
		return false
	}
	wait := int(b.opts.ProbeTimeout / time.Second)
	if wait < 1 {
		wait = 1
	}
	_, err := b.run.Run(ctx, runner.Spec{
		Name:    "ping",
		Args:    []string{"-c", "1", "-W", strconv.Itoa(wait), b.opts.PingHost},
		Timeout: b.opts.ProbeTimeout + time.Second,
	})
	return err == nil
}

func (b *Backend) nmcli(ctx context.Context, args ...string) (runner.Output, error) {
	out, err := b.run.Run(ctx, runner.Spec{
		Name:    "nmcli",
		Args:    args,
		Timeout: b.opts.QueryTimeout,
	})
	return out, b.classify(err)
}

func (b *Backend) iw(ctx context.Context, args ...string) (runner.Output, error) {
	return b.run.Run(ctx, runner.Spec{
		Name:    "iw",
		Args:    args,
		Timeout: b.opts.QueryTimeout,
	})
}
