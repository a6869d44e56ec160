// Command reprapd runs the HTTP front-end and, if a transport device is
// configured, drives the firmware side of the SPI link against a connected
// board-management peer: the same process answers DuetWebControl's REST
// calls and answers object-model requests from the other end of the link;
// every other packet type arriving over the link is logged and skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhagen325/RepRapFirmware/core"
	"github.com/rhagen325/RepRapFirmware/httpweb"
	"github.com/rhagen325/RepRapFirmware/sbclink"
	"github.com/rhagen325/RepRapFirmware/sbclink/hostlink"
)

var (
	configPath = flag.String("config", "", "path to a TOML config file (optional, overlays defaults)")
	listenAddr = flag.String("listen", "", "override the configured listen address")
)

func main() {
	flag.Parse()

	log := core.Log()

	cfg := httpweb.DefaultConfig()
	if *configPath != "" {
		loaded, err := httpweb.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reprapd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	gcodeInput := sbclink.NewFifoBuffer(4096)

	srv := httpweb.NewServer(cfg, gcodeInput, nil, log)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reprapd: listen %s: %v\n", cfg.ListenAddr, err)
		os.Exit(1)
	}
	log.Info().Str("addr", cfg.ListenAddr).Msg("listening")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	harness := startLink(cfg, log)
	if harness != nil {
		defer harness.Close()
		go runLinkExchange(ctx, harness, srv, log)
	}

	go runSessionSweeper(ctx, srv)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		ln.Close()
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "reprapd: %v\n", err)
		os.Exit(1)
	}
}

// startLink opens the serial peer named in cfg.SPIDevice and starts a
// Harness driving an sbclink.Link over it. A front-end without a configured
// device still serves static files and the password/session/upload surface
// of the API; it simply returns nil.
func startLink(cfg httpweb.Config, log zerolog.Logger) *hostlink.Harness {
	if cfg.SPIDevice == "" {
		return nil
	}
	peer, err := hostlink.Open(hostlink.DefaultConfig(cfg.SPIDevice))
	if err != nil {
		log.Warn().Err(err).Str("device", cfg.SPIDevice).Msg("no link peer available, running without one")
		return nil
	}
	link := sbclink.NewLink(peer, log)
	return hostlink.NewHarness(link, log)
}

// runLinkExchange drains completed transfers from harness and answers the
// one request type this daemon can serve on its own, ReqGetObjectModel,
// from srv's configured ObjectModelSource. Every other packet is logged and
// left unanswered; StartNextTransfer always runs so the handshake keeps
// advancing regardless.
func runLinkExchange(ctx context.Context, harness *hostlink.Harness, srv *httpweb.Server, log zerolog.Logger) {
	link := harness.Link()
	for {
		payload, err := harness.Next(ctx)
		if err != nil {
			return
		}

		reader := sbclink.NewReader(payload)
		for {
			header, ok := reader.ReadPacket()
			if !ok {
				break
			}
			switch header.Request {
			case sbclink.ReqGetObjectModel:
				module := reader.ReadGetObjectModel()
				data, err := srv.ObjectModel(module)
				if err != nil {
					log.Warn().Err(err).Uint16("module", module).Msg("object model query failed")
					continue
				}
				if !link.Writer().WriteObjectModel(module, data) {
					log.Warn().Uint16("module", module).Msg("object model reply did not fit in the outbound transfer")
				}
			default:
				reader.ReadData(int(header.Length))
				log.Debug().Uint16("request", header.Request).Msg("unhandled link packet")
			}
		}

		link.StartNextTransfer()
	}
}

// sessionCheckInterval is how often the scheduled timer below calls
// CheckSessions, matching DefaultSessionTimeout's granularity closely enough
// that an idle session is evicted within about a second of expiring.
const sessionCheckInterval = 1000

// runSessionSweeper evicts idle HTTP sessions from a core.Timer the same way
// the firmware schedules its own periodic housekeeping, rather than rolling
// a bespoke ticker loop. core.TimerDispatch has no goroutine of its own, so
// this still needs something driving it; a tight ticker plays that role.
func runSessionSweeper(ctx context.Context, srv *httpweb.Server) {
	var sweep core.Timer
	sweep.WakeTime = core.Millis() + sessionCheckInterval
	sweep.Handler = func(t *core.Timer) uint8 {
		srv.CheckSessions()
		t.WakeTime = core.Millis() + sessionCheckInterval
		return core.SF_RESCHEDULE
	}
	core.ScheduleTimer(&sweep)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			core.TimerDispatch()
		}
	}
}
