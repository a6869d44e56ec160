// Package sbclink implements the framed, packet-multiplexed transfer
// protocol exchanged between the motion controller and its companion
// single-board computer over a DMA-driven duplex link.
package sbclink

import "encoding/binary"

// Wire-format constants agreed with the peer. A mismatch on FormatCode or
// ProtocolVersion terminates the handshake rather than being silently
// tolerated.
const (
	FormatCode      byte = 0x5A
	ProtocolVersion byte = 1

	// TransferHeaderSize is the on-wire size of TransferHeader, fixed at 16
	// bytes regardless of target architecture.
	TransferHeaderSize = 16

	// PacketHeaderSize is the on-wire size of PacketHeader.
	PacketHeaderSize = 16

	// TransferBufferSize bounds the payload carried by a single transfer.
	// Larger messages are the caller's problem to fragment at a higher
	// layer; this link never fragments (see Non-goals).
	TransferBufferSize = 4096
)

// ResponseCode is the 4-byte signed value exchanged after each header or
// data phase.
type ResponseCode int32

const (
	RespSuccess            ResponseCode = 0
	RespBadFormat          ResponseCode = -1
	RespBadProtocolVersion ResponseCode = -2
	RespBadDataLength      ResponseCode = -3
	RespBadChecksum        ResponseCode = -4
)

func (r ResponseCode) String() string {
	switch r {
	case RespSuccess:
		return "success"
	case RespBadFormat:
		return "bad format"
	case RespBadProtocolVersion:
		return "bad protocol version"
	case RespBadDataLength:
		return "bad data length"
	case RespBadChecksum:
		return "bad checksum"
	default:
		return "unknown response"
	}
}

// AddPadding rounds n up to the next 4-byte boundary, matching the padding
// every header and data block is subject to on the wire.
func AddPadding(n int) int {
	return (n + 3) &^ 3
}

// TransferHeader is exchanged at the start of every transfer.
type TransferHeader struct {
	FormatCode      byte
	ProtocolVersion byte
	NumPackets      uint16
	SequenceNumber  uint16
	DataLength      uint16
	ChecksumHeader  uint32
	ChecksumData    uint32
}

// Encode writes h into a TransferHeaderSize-byte little-endian buffer.
func (h TransferHeader) Encode() []byte {
	buf := make([]byte, TransferHeaderSize)
	buf[0] = h.FormatCode
	buf[1] = h.ProtocolVersion
	binary.LittleEndian.PutUint16(buf[2:4], h.NumPackets)
	binary.LittleEndian.PutUint16(buf[4:6], h.SequenceNumber)
	binary.LittleEndian.PutUint16(buf[6:8], h.DataLength)
	binary.LittleEndian.PutUint32(buf[8:12], h.ChecksumHeader)
	binary.LittleEndian.PutUint32(buf[12:16], h.ChecksumData)
	return buf
}

// DecodeTransferHeader parses a TransferHeaderSize-byte buffer produced by
// Encode.
func DecodeTransferHeader(b []byte) (TransferHeader, bool) {
	if len(b) < TransferHeaderSize {
		return TransferHeader{}, false
	}
	return TransferHeader{
		FormatCode:      b[0],
		ProtocolVersion: b[1],
		NumPackets:      binary.LittleEndian.Uint16(b[2:4]),
		SequenceNumber:  binary.LittleEndian.Uint16(b[4:6]),
		DataLength:      binary.LittleEndian.Uint16(b[6:8]),
		ChecksumHeader:  binary.LittleEndian.Uint32(b[8:12]),
		ChecksumData:    binary.LittleEndian.Uint32(b[12:16]),
	}, true
}

// Validate checks the fields a peer is required to agree on, returning the
// response code to send back (RespSuccess if everything matches).
func (h TransferHeader) Validate() ResponseCode {
	if h.FormatCode != FormatCode {
		return RespBadFormat
	}
	if h.ProtocolVersion != ProtocolVersion {
		return RespBadProtocolVersion
	}
	if h.DataLength > TransferBufferSize {
		return RespBadDataLength
	}
	return RespSuccess
}

// PacketHeader precedes every packet body inside a transfer's payload.
type PacketHeader struct {
	Request        uint16
	ID             uint16
	Length         uint16
	ResendPacketID uint16
	Reserved       uint32
}

// Encode writes h into a PacketHeaderSize-byte little-endian buffer.
func (h PacketHeader) Encode() []byte {
	buf := make([]byte, PacketHeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], h.Request)
	binary.LittleEndian.PutUint16(buf[2:4], h.ID)
	binary.LittleEndian.PutUint16(buf[4:6], h.Length)
	binary.LittleEndian.PutUint16(buf[6:8], h.ResendPacketID)
	binary.LittleEndian.PutUint32(buf[8:12], h.Reserved)
	return buf
}

// DecodePacketHeader parses a PacketHeaderSize-byte buffer.
func DecodePacketHeader(b []byte) (PacketHeader, bool) {
	if len(b) < PacketHeaderSize {
		return PacketHeader{}, false
	}
	return PacketHeader{
		Request:        binary.LittleEndian.Uint16(b[0:2]),
		ID:             binary.LittleEndian.Uint16(b[2:4]),
		Length:         binary.LittleEndian.Uint16(b[4:6]),
		ResendPacketID: binary.LittleEndian.Uint16(b[6:8]),
		Reserved:       binary.LittleEndian.Uint32(b[8:12]),
	}, true
}

// Request codes agreed with the peer for the packet kinds this link
// exchanges. Unknown codes are forwarded to the application layer rather
// than rejected here (see Protocol errors in the error-handling design).
const (
	ReqObjectModel     uint16 = 1
	ReqCodeReply       uint16 = 2
	ReqMacroRequest    uint16 = 3
	ReqAbortFileRequest uint16 = 4
	ReqStackEvent      uint16 = 5
	ReqPrintPaused     uint16 = 6
	ReqHeightMap       uint16 = 7
	ReqLocked          uint16 = 8
	ReqReportState     uint16 = 9
	ReqPrintStarted    uint16 = 10
	ReqPrintStopped    uint16 = 11
	ReqMacroComplete   uint16 = 12
	ReqGetObjectModel  uint16 = 13
	ReqLockUnlockRequest uint16 = 14
)

// ObjectModelHeader precedes a serialized object-model fragment.
type ObjectModelHeader struct {
	Module uint16
	Length uint16
}

// CodeReplyHeader precedes a G-code reply fragment. PushFlag on MessageType
// marks that more of the reply remains queued for a later transfer, set by
// WriteCodeReply when it has to truncate.
type CodeReplyHeader struct {
	MessageType uint32
	Length      uint16
	_           uint16 // padding to keep the struct 4-byte aligned
}

const PushFlag uint32 = 0x80000000

// ExecuteMacroHeader precedes a macro-execution request.
type ExecuteMacroHeader struct {
	Channel       uint8
	ReportMissing uint8
	Length        uint16
}

// HeightMapHeader precedes a height-map snapshot.
type HeightMapHeader struct {
	XMin      float32
	XMax      float32
	XSpacing  float32
	YMin      float32
	YMax      float32
	YSpacing  float32
	Radius    float32
	NumPoints uint32
}

// ReportStateHeader carries the set of channels with output pending.
type ReportStateHeader struct {
	BusyChannels uint16
	_            uint16
}

// StackEventHeader reports a G-code stack push/pop.
type StackEventHeader struct {
	Channel  uint8
	Depth    uint8
	Flags    uint16
	Feedrate float32
}

// PrintPausedHeader reports the file position and reason a print paused.
type PrintPausedHeader struct {
	FilePosition uint32
	Reason       uint8
	_            [3]byte
}

// LockUnlockHeader carries a resource lock/unlock request for a channel.
type LockUnlockHeader struct {
	Channel uint8
	_       [3]byte
}

// AbortFileHeader requests the active file on a channel be aborted.
type AbortFileHeader struct {
	Channel    uint8
	AbortAll   uint8
	_          [2]byte
}

// PrintStartedHeader carries the filename and metadata of a file that just
// started printing. FilamentUsed and GeneratedBy are variable-length tails
// following the fixed fields, per the original's ReadPrintStartedInfo.
type PrintStartedHeader struct {
	FilenameLength  uint16
	NumFilaments    uint16
	LastModifiedTime uint32
	FileSize        uint32
	FirstLayerHeight float32
	LayerHeight     float32
	ObjectHeight    float32
	PrintTime       uint32
	SimulatedTime   uint32
}

// PrintStoppedHeader reports why a print ended.
type PrintStoppedHeader struct {
	Reason uint8
	_      [3]byte
}

// MacroCompleteHeader reports that a requested macro finished executing.
type MacroCompleteHeader struct {
	Channel uint8
	Error   uint8
	_       [2]byte
}
