// Command sbcbench drives the controller side of an sbclink.Link against a
// serial-attached peer, for bench-testing the transfer engine against real
// hardware (or a USB-serial bridge) without the full HTTP front-end running.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rhagen325/RepRapFirmware/core"
	"github.com/rhagen325/RepRapFirmware/sbclink"
	"github.com/rhagen325/RepRapFirmware/sbclink/hostlink"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "serial device path to the peer")
	baud    = flag.Int("baud", 115200, "baud rate")
	count   = flag.Int("count", 10, "number of transfers to drive before exiting")
	timeout = flag.Duration("timeout", 2*time.Second, "per-transfer wait timeout")
)

func main() {
	flag.Parse()

	log := core.Log()

	cfg := hostlink.DefaultConfig(*device)
	cfg.Baud = *baud

	peer, err := hostlink.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sbcbench: %v\n", err)
		os.Exit(1)
	}

	link := sbclink.NewLink(peer, log)
	harness := hostlink.NewHarness(link, log)
	defer harness.Close()

	for i := 0; i < *count; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		payload, err := harness.Next(ctx)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "sbcbench: transfer %d: %v\n", i, err)
			os.Exit(1)
		}

		fmt.Printf("transfer %d: %d bytes of payload\n", i, len(payload))
		fmt.Printf("  diagnostics: %+v\n", link.Diagnostics())

		link.StartNextTransfer()
	}
}
