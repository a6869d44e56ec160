package sbclink

import (
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// queuePeer is a test double that answers each Arm call with the next
// queued response bytes, completing immediately like LoopbackPeer but able
// to script a whole exchange sequence instead of just one call.
type queuePeer struct {
	responses [][]byte
	armed     int
	txLog     [][]byte
}

func (p *queuePeer) Arm(tx, rx []byte) (<-chan error, error) {
	p.txLog = append(p.txLog, append([]byte(nil), tx...))
	if p.armed < len(p.responses) {
		copy(rx, p.responses[p.armed])
	}
	p.armed++
	ch := make(chan error, 1)
	ch <- nil
	return ch, nil
}

func (p *queuePeer) Disable() {}

// pump drives IsReady until cond is satisfied or it gives up, accounting for
// the decode step that runs on its own goroutine after a completed Arm.
func pump(t *testing.T, link *Link, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		link.IsReady()
		if cond() {
			return
		}
		runtime.Gosched()
	}
	t.Fatal("pump: condition never became true")
}

func TestLinkHappyPath(t *testing.T) {
	peerHeader := TransferHeader{FormatCode: FormatCode, ProtocolVersion: ProtocolVersion, DataLength: 0, SequenceNumber: 42}
	respSuccess := make([]byte, 4)
	putLeUint32(respSuccess, uint32(int32(RespSuccess)))

	// The peer answers the second header exchange with the same header, so the
	// decode that may still be running when pump returns cannot replace
	// rxHeader with a silent peer's all-zero header.
	peer := &queuePeer{responses: [][]byte{peerHeader.Encode(), respSuccess, peerHeader.Encode()}}
	link := NewLink(peer, zerolog.Nop())
	link.SetTimeouts(time.Millisecond, 4*time.Second)

	pump(t, link, func() bool { return link.Diagnostics().SequenceNumber >= 2 })

	diag := link.Diagnostics()
	if diag.State != "exchanging header" {
		t.Errorf("State = %q, want %q", diag.State, "exchanging header")
	}
	if !diag.Connected {
		t.Error("Connected = false, want true after a peer header with a nonzero sequence number")
	}
	if diag.SequenceNumber != 2 {
		t.Errorf("SequenceNumber = %d, want 2", diag.SequenceNumber)
	}
}

func TestLinkBadFormat(t *testing.T) {
	badHeader := TransferHeader{FormatCode: 0xFF, ProtocolVersion: ProtocolVersion, DataLength: 0, SequenceNumber: 7}
	respSuccess := make([]byte, 4)
	putLeUint32(respSuccess, uint32(int32(RespSuccess)))

	peer := &queuePeer{responses: [][]byte{badHeader.Encode(), respSuccess}}
	link := NewLink(peer, zerolog.Nop())
	link.SetTimeouts(time.Millisecond, 4*time.Second)

	pump(t, link, func() bool { return link.Diagnostics().TxResponse == RespBadFormat })

	pump(t, link, func() bool { return link.Diagnostics().State == "exchanging header" })

	diag := link.Diagnostics()
	if diag.TxResponse != RespBadFormat {
		t.Errorf("TxResponse = %v, want RespBadFormat", diag.TxResponse)
	}
	if diag.State != "exchanging header" {
		t.Errorf("State = %q, want %q (bad format must return to exchanging header regardless of the peer's reply)", diag.State, "exchanging header")
	}
}
