package hostlink

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhagen325/RepRapFirmware/sbclink"
)

// Harness drives an sbclink.Link's IsReady loop on a background goroutine
// and exposes a blocking request/response call for test and bench tools,
// the way a host-side MCU driver exposes SendCommand/ReceiveResponse over a
// transport's own read loop.
type Harness struct {
	link *sbclink.Link
	log  zerolog.Logger

	done    chan struct{}
	stopped chan struct{}

	transfers chan []byte
}

// NewHarness starts a Harness driving link. Call Close to stop the
// background loop.
func NewHarness(link *sbclink.Link, log zerolog.Logger) *Harness {
	h := &Harness{
		link:      link,
		log:       log,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		transfers: make(chan []byte, 1),
	}
	go h.run()
	return h
}

func (h *Harness) run() {
	defer close(h.stopped)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			if h.link.IsReady() {
				payload := append([]byte(nil), h.link.Payload()...)
				select {
				case h.transfers <- payload:
				default:
					h.log.Warn().Msg("dropped transfer, no receiver polling Next")
				}
			}
		}
	}
}

// Next blocks until a transfer's payload is available for processing or ctx
// is done. The caller must call StartNextTransfer on the underlying Link
// once it is finished with the returned bytes.
func (h *Harness) Next(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-h.transfers:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.stopped:
		return nil, fmt.Errorf("hostlink: harness stopped")
	}
}

// Link returns the underlying Link so a caller can compose outbound packets
// with its Writer before the next transfer.
func (h *Harness) Link() *sbclink.Link {
	return h.link
}

// Close stops the background loop and waits for it to exit.
func (h *Harness) Close() {
	close(h.done)
	<-h.stopped
}
