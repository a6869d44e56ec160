package hostlink

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhagen325/RepRapFirmware/sbclink"
)

// queuePeer answers each Arm call with the next queued response, mirroring
// sbclink's own test double for scripting a whole exchange sequence.
type queuePeer struct {
	responses [][]byte
	armed     int
}

func (p *queuePeer) Arm(tx, rx []byte) (<-chan error, error) {
	if p.armed < len(p.responses) {
		copy(rx, p.responses[p.armed])
	}
	p.armed++
	ch := make(chan error, 1)
	ch <- nil
	return ch, nil
}

func (p *queuePeer) Disable() {}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestHarnessNextDeliversTransfer(t *testing.T) {
	header := sbclink.TransferHeader{
		FormatCode:      sbclink.FormatCode,
		ProtocolVersion: sbclink.ProtocolVersion,
		DataLength:      4,
		SequenceNumber:  1,
	}
	respSuccess := make([]byte, 4)
	putLeUint32(respSuccess, uint32(int32(sbclink.RespSuccess)))
	payload := []byte{1, 2, 3, 4}

	// The data phase only runs when both sides declare a nonzero data
	// length, so the peer sends 4 bytes and the link queues one packet.
	peer := &queuePeer{responses: [][]byte{header.Encode(), respSuccess, payload, respSuccess}}
	link := sbclink.NewLink(peer, zerolog.Nop())
	link.SetTimeouts(time.Millisecond, 4*time.Second)
	if !link.Writer().WriteState(0) {
		t.Fatal("WriteState did not fit in an empty transfer")
	}

	harness := NewHarness(link, zerolog.Nop())
	defer harness.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := harness.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if harness.Link() == nil {
		t.Error("Link() should return the underlying link")
	}
}

func TestHarnessNextRespectsContextCancellation(t *testing.T) {
	peer := &queuePeer{}
	link := sbclink.NewLink(peer, zerolog.Nop())

	harness := NewHarness(link, zerolog.Nop())
	defer harness.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := harness.Next(ctx); err == nil {
		t.Error("Next should return an error once its context is done and no transfer ever arrives")
	}
}

func TestHarnessCloseStopsBackgroundLoop(t *testing.T) {
	peer := &queuePeer{}
	link := sbclink.NewLink(peer, zerolog.Nop())

	harness := NewHarness(link, zerolog.Nop())
	harness.Close()

	if _, err := harness.Next(context.Background()); err == nil {
		t.Error("Next should error once the harness has been closed")
	}
}
