// Package hostlink lets a regular host machine stand in for the SBC side of
// an sbclink.Link, either over a real or USB-bridged serial port (SerialPeer)
// or in process for tests and benchmarks (Harness).
package hostlink

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/rhagen325/RepRapFirmware/sbclink"
)

// Port is the minimal serial transport SerialPeer drives. github.com/tarm/serial's
// *serial.Port satisfies it directly.
type Port interface {
	io.ReadWriteCloser
}

// Config configures a SerialPeer's underlying port.
type Config struct {
	// Device is the OS path to the serial device, e.g. "/dev/ttyACM0".
	Device string
	// Baud is the line rate. The SBC link has no inherent baud rate (it is
	// normally clocked SPI); this only matters when bridging over a real
	// UART instead of a hardware SPI peripheral.
	Baud int
	// ReadTimeout bounds how long a single Arm waits for its reply before
	// failing the exchange.
	ReadTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a USB-serial SBC bridge.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 200 * time.Millisecond,
	}
}

// SerialPeer implements sbclink.Peer over a byte-stream serial port. Because
// a UART has no separate clock line, duplex "exchange" is modeled as write
// tx, then read exactly len(rx) bytes back, each Arm call running on its own
// goroutine so IsReady's poll never blocks.
type SerialPeer struct {
	port Port
	cfg  Config
}

// Open opens the serial device named in cfg and returns a ready SerialPeer.
func Open(cfg Config) (*SerialPeer, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("hostlink: open %s: %w", cfg.Device, err)
	}
	return &SerialPeer{port: port, cfg: cfg}, nil
}

// NewSerialPeer wraps an already-open Port, letting tests substitute an
// in-memory io.ReadWriteCloser in place of a real device.
func NewSerialPeer(port Port, cfg Config) *SerialPeer {
	return &SerialPeer{port: port, cfg: cfg}
}

// Arm implements sbclink.Peer.
func (p *SerialPeer) Arm(tx, rx []byte) (<-chan error, error) {
	ch := make(chan error, 1)
	go func() {
		if len(tx) > 0 {
			if _, err := p.port.Write(tx); err != nil {
				ch <- fmt.Errorf("hostlink: write: %w", err)
				return
			}
		}
		if len(rx) > 0 {
			if _, err := io.ReadFull(p.port, rx); err != nil {
				ch <- fmt.Errorf("hostlink: read: %w", err)
				return
			}
		}
		ch <- nil
	}()
	return ch, nil
}

// Disable closes the underlying port. A new SerialPeer must be Opened to
// resume.
func (p *SerialPeer) Disable() {
	_ = p.port.Close()
}

var _ sbclink.Peer = (*SerialPeer)(nil)
