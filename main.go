// netmoded - Network mode controller for headless battery-powered
// devices.  Switches the wireless personality between WiFi client and
// access point without ever leaving the device unreachable.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"netmoded/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "netmoded: %v\n", err)
		os.Exit(1)
	}
}
