// Package cmd wires up the CLI flags and assembles the daemon.
package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"

	flag "github.com/spf13/pflag"

	"netmoded/config"
	"netmoded/internal/api"
	"netmoded/internal/button"
	"netmoded/internal/display"
	"netmoded/internal/metrics"
	"netmoded/internal/netmode"
	"netmoded/internal/nmcli"
	"netmoded/internal/notify"
	"netmoded/internal/runner"
	"netmoded/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X netmoded/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args, assembles the layered configuration, and runs
// the daemon until ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("netmoded", flag.ContinueOnError)

	var (
		configPath     string
		iface          string
		clientProfile  string
		hotspotProfile string
		listen         string
		noMonitor      bool
		noButtons      bool
		verbose        int
		dryRun         bool
		showVersion    bool
		showHelp       bool
	)

	// ── network ──────────────────────────────────────────────────
	fs.StringVarP(&configPath, "config", "C", "", "YAML config file")
	fs.StringVarP(&iface, "interface", "i", "", "Wireless interface to manage")
	fs.StringVar(&clientProfile, "client-profile", "", "NetworkManager profile for client mode")
	fs.StringVar(&hotspotProfile, "hotspot-profile", "", "NetworkManager profile for access-point mode")

	// ── subsystems ───────────────────────────────────────────────
	fs.StringVar(&listen, "listen", "", "HTTP API bind address")
	fs.BoolVar(&noMonitor, "no-monitor", false, "Disable the connectivity watchdog")
	fs.BoolVar(&noButtons, "no-buttons", false, "Disable the GPIO buttons")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")

	fs.BoolVar(&dryRun, "dry-run", false, "Validate configuration and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("netmoded %s\n", version)
		return nil
	}

	// ── layer the configuration ──────────────────────────────────
	// File under defaults, environment over file, explicit flags on
	// top.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	config.LoadFromEnv(cfg)

	if fs.Changed("interface") {
		cfg.Interface = iface
	}
	if fs.Changed("client-profile") {
		cfg.ClientProfile = clientProfile
	}
	if fs.Changed("hotspot-profile") {
		cfg.HotspotProfile = hotspotProfile
	}
	if fs.Changed("listen") {
		cfg.Listen = listen
	}
	if noMonitor {
		cfg.Monitor.Enabled = false
	}
	if noButtons {
		cfg.Buttons.Enabled = false
	}
	if fs.Changed("verbose") {
		// Each -v raises the level above normal.
		cfg.Verbose = config.DefaultVerbosity + verbose
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	if dryRun {
		printSummary(cfg)
		return nil
	}

	return run(ctx, cfg)
}

// run assembles the daemon from cfg and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	logger := util.NewLogger(cfg.Verbose)
	logger.Info("netmoded %s starting on %s", version, cfg.Interface)

	// ── build components ─────────────────────────────────────────
	m := metrics.New()
	runr := runner.NewExecRunner(logger.Named("exec"), m)
	backend := nmcli.NewBackend(logger.Named("nmcli"), runr, nmcli.Options{
		Interface:       cfg.Interface,
		ClientProfile:   cfg.ClientProfile,
		HotspotProfile:  cfg.HotspotProfile,
		ActivateTimeout: cfg.ActivateTimeout.Std(),
		QueryTimeout:    cfg.QueryTimeout.Std(),
		ProbeTimeout:    cfg.Monitor.ProbeTimeout.Std(),
		PingHost:        cfg.Monitor.PingHost,
	})

	bus := notify.NewBus(logger.Named("notify"))
	ctrl := netmode.NewController(logger.Named("netmode"), backend, bus, m)

	// Every committed mode change lands in the journal regardless of
	// what else is subscribed.
	elog := logger.Named("event")
	bus.Subscribe("log", func(e netmode.Event) { logEvent(elog, e) })

	var wg sync.WaitGroup

	if cfg.Display.Enabled {
		renderer := display.NewCommandRenderer(logger.Named("display"), runr,
			cfg.Display.Command, cfg.Display.Timeout.Std())
		listener := display.NewListener(logger.Named("display"), renderer, m)
		bus.Subscribe("display", listener.Notify)
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener.Run(ctx)
		}()
	}

	// ── adopt the boot mode ──────────────────────────────────────
	// Runs before the monitor and buttons start so everything after
	// it sees a committed state, and after the display subscription
	// so the first frame reflects it.
	if err := ctrl.Adopt(ctx); err != nil {
		logger.Warn("startup adoption failed, continuing in %s mode: %v",
			netmode.ModeUnknown, err)
	}

	// ── start subsystems ─────────────────────────────────────────
	if cfg.Monitor.Enabled {
		mon := netmode.NewMonitor(logger.Named("monitor"), ctrl, backend, m,
			cfg.Monitor.Interval.Std(), cfg.Monitor.FailureThreshold)
		wg.Add(1)
		go func() {
			defer wg.Done()
			mon.Run(ctx)
		}()
	}

	if cfg.Buttons.Enabled {
		interp, err := button.NewInterpreter(logger.Named("button"), ctrl, m, cfg.Buttons)
		if err != nil {
			return err
		}
		glog := logger.Named("gpio")
		chip, lines := cfg.Buttons.Chip, interp.Lines()
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := interp.Supervise(ctx, func() (button.EdgeSource, error) {
				return button.OpenGPIO(glog, chip, lines)
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("buttons unavailable: %v", err)
			}
		}()
	}

	srv := api.NewServer(ctrl, m, api.ServerOptions{
		Addr:   cfg.Listen,
		Logger: logger.Named("api"),
	})
	srv.Start()

	// ── run until cancelled ──────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutting down")

	// Drain HTTP first so no new mode change arrives while the
	// workers wind down.
	if err := srv.Stop(context.Background()); err != nil {
		logger.Warn("api shutdown: %v", err)
	}
	wg.Wait()

	logger.Info("netmoded stopped")
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

// logEvent narrates controller events in the journal.
func logEvent(log *util.Logger, e netmode.Event) {
	switch e.Kind {
	case netmode.EventAdopted:
		log.Info("adopted %s mode, ip %s", e.State.Current, orDash(e.Info.IPAddress))
	case netmode.EventTransition:
		if e.Err != nil {
			log.Warn("mode change failed, staying in %s: %v", e.State.Current, e.Err)
			return
		}
		log.Info("mode now %s via %s, ip %s", e.State.Current, e.Trigger, orDash(e.Info.IPAddress))
	case netmode.EventStatus:
		log.Info("status requested via %s", e.Trigger)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printSummary(cfg *config.Config) {
	fmt.Printf("configuration ok\n")
	fmt.Printf("  interface        %s\n", cfg.Interface)
	fmt.Printf("  client profile   %s\n", cfg.ClientProfile)
	fmt.Printf("  hotspot profile  %s\n", cfg.HotspotProfile)
	fmt.Printf("  listen           %s\n", cfg.Listen)
	fmt.Printf("  monitor          %s\n", onOff(cfg.Monitor.Enabled))
	fmt.Printf("  buttons          %s\n", onOff(cfg.Buttons.Enabled))
	fmt.Printf("  display          %s\n", onOff(cfg.Display.Enabled))
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `netmoded – Network Mode Controller v%s

Keeps a headless device reachable by switching its wireless
personality between WiFi client and access point.

Usage:
  netmoded [options]                        Run the daemon
  netmoded --dry-run [options]              Validate configuration and exit

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  Every setting also reads a NETMODED_-prefixed variable, e.g.
  NETMODED_CLIENT_PROFILE or NETMODED_NO_BUTTONS=1.  Flags win over
  the environment, the environment wins over the config file.

Examples:
  netmoded -i wlan0 --client-profile HomeWiFi
  netmoded -C /etc/netmoded/config.yaml -vv
  netmoded --no-buttons --listen 127.0.0.1:8080
`)
}
