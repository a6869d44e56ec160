package sbclink

import "errors"

// ErrPeerBusy is returned by Arm when an exchange is already in flight.
var ErrPeerBusy = errors.New("sbclink: peer busy")

// Peer abstracts the hardware half of the link: arming the DMA-driven
// exchange of a fixed number of bytes each way, and disabling it. A
// concrete Peer delivers exactly one completion notification per Arm call
// on the channel it returns; the notification carries any transport-level
// error (e.g. a short read). Link drives every state transition from task
// context by polling that channel in IsReady — a Peer implementation must
// never touch Link state itself, matching the original ISR's "only sets a
// flag" contract.
type Peer interface {
	// Arm starts a full-duplex exchange clocked for max(len(tx), len(rx))
	// byte periods: tx is sent (zero-padded past its own length), and up to
	// len(rx) received bytes are written into rx. tx and rx need not be the
	// same length — the header phase uses equal lengths, but the data phase
	// exchanges each side's own declared payload length, which can differ.
	// It returns a channel that receives exactly once on completion.
	Arm(tx, rx []byte) (<-chan error, error)

	// Disable aborts any exchange in progress and releases the hardware.
	Disable()
}

// LoopbackPeer is a Peer test double that completes an Arm call by handing
// the peer-side response supplied in NextRx back as the "received" bytes,
// simulating a peer that answers instantly. It is also usable as a crude
// host-side driver in tests that only care about the controller-side state
// machine.
type LoopbackPeer struct {
	// NextRx, if non-nil, is copied into rx on the next Arm call and then
	// cleared. If nil, rx is left untouched (a freshly allocated rx stays
	// zeroed, simulating silence from the peer).
	NextRx []byte
	armed  chan error
}

// Arm implements Peer.
func (p *LoopbackPeer) Arm(tx, rx []byte) (<-chan error, error) {
	if p.armed != nil {
		return nil, ErrPeerBusy
	}
	if p.NextRx != nil {
		copy(rx, p.NextRx)
		p.NextRx = nil
	}
	ch := make(chan error, 1)
	ch <- nil
	p.armed = nil
	return ch, nil
}

// Disable implements Peer.
func (p *LoopbackPeer) Disable() {
	p.armed = nil
}
