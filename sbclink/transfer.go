package sbclink

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/rhagen325/RepRapFirmware/core"
)

// State names the current phase of the four-phase exchange.
type State int

const (
	Initializing State = iota
	ExchangingHeader
	ExchangingHeaderResponse
	ExchangingData
	ExchangingDataResponse
	ProcessingData
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case ExchangingHeader:
		return "exchanging header"
	case ExchangingHeaderResponse:
		return "exchanging header response"
	case ExchangingData:
		return "exchanging data"
	case ExchangingDataResponse:
		return "exchanging data response"
	case ProcessingData:
		return "processing data"
	default:
		return "unknown"
	}
}

// Default timeouts, matching the original's SpiTransferTimeout (500ms) and
// SpiConnectionTimeout (4s).
const (
	DefaultTransferTimeout   = 500 * time.Millisecond
	DefaultConnectionTimeout = 4 * time.Second
)

// Link drives the controller side of the four-phase exchange over a Peer.
// Exactly one goroutine must call IsReady; every field below is private to
// that goroutine except where noted.
type Link struct {
	peer Peer
	log  zerolog.Logger

	state              State
	pending            <-chan error
	lastTransferTime   uint32
	sequenceNumber     uint16
	lastSequenceNumber uint16

	rxHeader TransferHeader
	txHeader TransferHeader

	rxResponseBuf [4]byte
	txResponseBuf [4]byte
	rxResponse    ResponseCode
	txResponse    ResponseCode

	rxBuf [TransferBufferSize]byte
	txBuf [TransferBufferSize]byte

	writer *Writer

	transferTimeout   time.Duration
	connectionTimeout time.Duration
}

// NewLink returns a Link in its Initializing state, armed against peer.
func NewLink(peer Peer, log zerolog.Logger) *Link {
	l := &Link{
		peer:              peer,
		log:               log,
		state:             Initializing,
		transferTimeout:   DefaultTransferTimeout,
		connectionTimeout: DefaultConnectionTimeout,
	}
	l.writer = NewWriterOver(l.txBuf[:])
	return l
}

// SetTimeouts overrides the default transfer/connection timeouts, mainly for
// tests that want to exercise recovery without sleeping real time.
func (l *Link) SetTimeouts(transfer, connection time.Duration) {
	l.transferTimeout = transfer
	l.connectionTimeout = connection
}

// IsConnected reports whether the peer has been seen recently enough that
// its last-known sequence number is still considered valid.
func (l *Link) IsConnected() bool {
	return l.rxHeader.SequenceNumber != 0
}

// PeerSequenceNumber returns the last sequence number the peer declared, or
// 0 if the peer is considered disconnected.
func (l *Link) PeerSequenceNumber() uint16 {
	return l.rxHeader.SequenceNumber
}

// Payload returns the most recently received transfer's payload, valid only
// while State is ProcessingData.
func (l *Link) Payload() []byte {
	return l.rxBuf[:l.rxHeader.DataLength]
}

// NewReader returns a Reader over the current payload.
func (l *Link) NewReader() *Reader {
	return NewReader(l.Payload())
}

// Writer returns the Writer for composing the next transfer's outbound
// payload. Valid to call any time before StartNextTransfer; the same
// instance is reused (and Reset) across transfers.
func (l *Link) Writer() *Writer {
	return l.writer
}

// exchangeHeader resets the rx header fields that must not carry over from
// the last exchange, stamps the tx header with the next sequence number,
// and arms the peer for a TransferHeader exchange. rxHeader.SequenceNumber
// is deliberately left alone here: it is the peer's last-known liveness
// marker until the header this call arms is decoded and replaces the whole
// rxHeader (a silent peer's all-zero header sets it to 0), or until the
// connection-timeout path in IsReady clears it.
func (l *Link) exchangeHeader() {
	l.log.Debug().Uint16("seq", l.sequenceNumber).Msg("starting transfer")

	l.rxHeader.FormatCode = 0
	l.rxHeader.ProtocolVersion = 0
	l.rxHeader.NumPackets = 0
	l.rxHeader.DataLength = 0
	l.rxHeader.ChecksumHeader = 0
	l.rxHeader.ChecksumData = 0

	l.sequenceNumber++
	l.txHeader.SequenceNumber = l.sequenceNumber
	l.txHeader.DataLength = uint16(l.writer.Pos())
	l.txHeader.NumPackets = l.writer.NumPackets()
	l.txHeader.FormatCode = FormatCode
	l.txHeader.ProtocolVersion = ProtocolVersion

	tx := l.txHeader.Encode()
	rx := make([]byte, TransferHeaderSize)
	l.arm(tx, rx, func(decoded []byte) {
		if h, ok := DecodeTransferHeader(decoded); ok {
			l.rxHeader = h
		}
	})
	l.state = ExchangingHeader
}

func (l *Link) exchangeResponse(response ResponseCode) {
	l.txResponse = response
	putLeUint32(l.txResponseBuf[:], uint32(int32(response)))

	rx := make([]byte, 4)
	l.arm(l.txResponseBuf[:], rx, func(decoded []byte) {
		l.rxResponse = ResponseCode(int32(leUint32(decoded)))
	})

	if l.state == ExchangingHeader {
		l.state = ExchangingHeaderResponse
	} else {
		l.state = ExchangingDataResponse
	}
}

func (l *Link) exchangeData() {
	tx := l.txBuf[:l.txHeader.DataLength]
	rx := l.rxBuf[:l.rxHeader.DataLength]
	l.arm(tx, rx, nil)
	l.state = ExchangingData
}

// arm starts a Peer exchange and remembers how to finish decoding once it
// completes; decode is called with the rx slice after a successful
// exchange and may be nil when the raw bytes need no further handling.
func (l *Link) arm(tx, rx []byte, decode func([]byte)) {
	ch, err := l.peer.Arm(tx, rx)
	if err != nil {
		l.log.Warn().Err(err).Msg("failed to arm peer")
		return
	}
	pending := ch
	l.pending = wrapDecode(pending, rx, decode)
}

// wrapDecode runs decode on rx once the underlying channel fires, then
// forwards the (possibly transport-level) error on a fresh channel so
// IsReady's poll stays a simple non-blocking receive.
func wrapDecode(ch <-chan error, rx []byte, decode func([]byte)) <-chan error {
	out := make(chan error, 1)
	go func() {
		err := <-ch
		if err == nil && decode != nil {
			decode(rx)
		}
		out <- err
	}()
	return out
}

// IsReady advances the state machine by at most one transition and reports
// whether a full transfer just completed (state became ProcessingData). It
// never blocks: if no exchange has completed, it checks the timeout
// recovery rules and returns false.
func (l *Link) IsReady() bool {
	select {
	case err := <-l.pending:
		l.pending = nil
		l.lastTransferTime = core.Millis()
		if err != nil {
			l.log.Warn().Err(err).Msg("transport error, restarting transfer")
			l.exchangeHeader()
			return false
		}
		return l.dispatch()
	default:
	}

	now := core.Millis()
	switch {
	case l.state == Initializing && now > uint32(l.transferTimeout.Milliseconds()):
		l.exchangeHeader()
	case l.state != ExchangingHeader && now-l.lastTransferTime > uint32(l.transferTimeout.Milliseconds()):
		l.peer.Disable()
		l.exchangeHeader()
	case l.IsConnected() && now-l.lastTransferTime > uint32(l.connectionTimeout.Milliseconds()):
		l.rxHeader.SequenceNumber = 0
	}
	return false
}

func (l *Link) dispatch() bool {
	switch l.state {
	case ExchangingHeader:
		switch l.rxHeader.Validate() {
		case RespBadFormat:
			l.exchangeResponse(RespBadFormat)
		case RespBadProtocolVersion:
			l.exchangeResponse(RespBadProtocolVersion)
		case RespBadDataLength:
			l.exchangeResponse(RespBadDataLength)
		default:
			l.exchangeResponse(RespSuccess)
		}
		return false

	case ExchangingHeaderResponse:
		if l.rxResponse == RespSuccess && l.txResponse == RespSuccess &&
			l.rxHeader.DataLength != 0 && l.txHeader.DataLength != 0 {
			l.exchangeData()
		} else {
			l.exchangeHeader()
		}
		return false

	case ExchangingData:
		l.exchangeResponse(RespSuccess)
		return false

	case ExchangingDataResponse:
		if l.rxResponse == RespSuccess {
			l.writer.Reset()
			l.txHeader.NumPackets = 0
			l.state = ProcessingData
			return true
		}
		l.exchangeData()
		return false

	default:
		l.log.Error().Stringer("state", l.state).Msg("IsReady called outside the handshake, resetting")
		l.state = ExchangingHeader
		return false
	}
}

// StartNextTransfer tells the Link the application is done with the
// payload from the last completed transfer, restarting the handshake from
// ExchangingHeader.
func (l *Link) StartNextTransfer() {
	l.lastSequenceNumber = l.rxHeader.SequenceNumber
	l.exchangeHeader()
}

// Diagnostics returns a structured snapshot of the link's current state for
// logging or serving over a diagnostics endpoint.
type Diagnostics struct {
	State            string
	LastTransferAgo  uint32
	TxPointer        int
	RxPointer        int
	RxResponse       ResponseCode
	TxResponse       ResponseCode
	SequenceNumber   uint16
	Connected        bool
}

// Diagnostics reports the link's current state.
func (l *Link) Diagnostics() Diagnostics {
	return Diagnostics{
		State:           l.state.String(),
		LastTransferAgo: core.Millis() - l.lastTransferTime,
		TxPointer:       l.writer.Pos(),
		RxPointer:       int(l.rxHeader.DataLength),
		RxResponse:      l.rxResponse,
		TxResponse:      l.txResponse,
		SequenceNumber:  l.sequenceNumber,
		Connected:       l.IsConnected(),
	}
}
