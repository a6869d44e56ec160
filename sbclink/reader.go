package sbclink

// Reader walks a received transfer's payload packet by packet. It holds no
// state beyond a cursor into the payload bytes, mirroring the original's
// raw rxBuffer+rxPointer pair.
type Reader struct {
	payload []byte
	pos     int
}

// NewReader wraps a transfer's payload bytes for sequential reading.
func NewReader(payload []byte) *Reader {
	return &Reader{payload: payload}
}

// Pos returns the current read cursor, useful for diagnostics and for
// computing how many payload bytes a ReadData or typed Read* call consumed.
func (r *Reader) Pos() int { return r.pos }

// ReadPacket returns the next packet header, or ok=false once the cursor has
// consumed the whole payload.
func (r *Reader) ReadPacket() (PacketHeader, bool) {
	if r.pos >= len(r.payload) {
		return PacketHeader{}, false
	}
	header, ok := DecodePacketHeader(r.payload[r.pos:])
	if !ok {
		return PacketHeader{}, false
	}
	r.pos += PacketHeaderSize
	return header, true
}

// ReadData returns the next length bytes of packet body, advancing the
// cursor by the padded length.
func (r *Reader) ReadData(length int) []byte {
	if r.pos+length > len(r.payload) {
		length = len(r.payload) - r.pos
	}
	data := r.payload[r.pos : r.pos+length]
	r.pos += AddPadding(length)
	return data
}

// ReadGetObjectModel reads an ObjectModelHeader and returns the requested
// module index.
func (r *Reader) ReadGetObjectModel() uint16 {
	h := r.readObjectModelHeader()
	return h.Module
}

func (r *Reader) readObjectModelHeader() ObjectModelHeader {
	if r.pos+4 > len(r.payload) {
		return ObjectModelHeader{}
	}
	h := ObjectModelHeader{
		Module: leUint16(r.payload[r.pos:]),
		Length: leUint16(r.payload[r.pos+2:]),
	}
	r.pos += 4
	return h
}

// PrintStartedInfo is the decoded result of ReadPrintStartedInfo: the fixed
// header fields plus the variable-length filament array, filename, and
// generatedBy tail that follow it in the packet body.
type PrintStartedInfo struct {
	Header       PrintStartedHeader
	FilamentUsed []float32
	Filename     string
	GeneratedBy  string
}

// ReadPrintStartedInfo decodes a print-started packet of packetLength total
// bytes (header + filaments + filename + generatedBy, all contiguous, no
// padding between the tail fields).
func (r *Reader) ReadPrintStartedInfo(packetLength int) PrintStartedInfo {
	h := r.readPrintStartedHeader()

	tailLen := packetLength - 36 // fixed header size
	if tailLen < 0 {
		tailLen = 0
	}
	tail := r.payload[r.pos : r.pos+minInt(tailLen, len(r.payload)-r.pos)]

	filamentBytes := int(h.NumFilaments) * 4
	filaments := make([]float32, 0, h.NumFilaments)
	for i := 0; i+4 <= filamentBytes && i+4 <= len(tail); i += 4 {
		filaments = append(filaments, leFloat32(tail[i:]))
	}

	rest := tail[minInt(filamentBytes, len(tail)):]
	filenameLen := int(h.FilenameLength)
	var filename, generatedBy string
	if filenameLen <= len(rest) {
		filename = string(rest[:filenameLen])
		generatedBy = string(rest[filenameLen:])
	}

	r.pos += AddPadding(tailLen)
	return PrintStartedInfo{
		Header:       h,
		FilamentUsed: filaments,
		Filename:     filename,
		GeneratedBy:  generatedBy,
	}
}

func (r *Reader) readPrintStartedHeader() PrintStartedHeader {
	b := r.payload[r.pos:]
	if len(b) < 36 {
		r.pos += len(b)
		return PrintStartedHeader{}
	}
	h := PrintStartedHeader{
		FilenameLength:   leUint16(b[0:]),
		NumFilaments:     leUint16(b[2:]),
		LastModifiedTime: leUint32(b[4:]),
		FileSize:         leUint32(b[8:]),
		FirstLayerHeight: leFloat32(b[12:]),
		LayerHeight:      leFloat32(b[16:]),
		ObjectHeight:     leFloat32(b[20:]),
		PrintTime:        leUint32(b[24:]),
		SimulatedTime:    leUint32(b[28:]),
	}
	r.pos += 36
	return h
}

// ReadPrintStoppedInfo reads the single-byte stop reason.
func (r *Reader) ReadPrintStoppedInfo() uint8 {
	if r.pos >= len(r.payload) {
		return 0
	}
	reason := r.payload[r.pos]
	r.pos += 4
	return reason
}

// ReadMacroCompleteInfo reads which channel finished a macro and whether it
// errored.
func (r *Reader) ReadMacroCompleteInfo() (channel uint8, failed bool) {
	if r.pos+2 > len(r.payload) {
		return 0, false
	}
	channel = r.payload[r.pos]
	failed = r.payload[r.pos+1] != 0
	r.pos += 4
	return channel, failed
}

// ReadLockUnlockRequest reads which channel is requesting a lock/unlock.
func (r *Reader) ReadLockUnlockRequest() uint8 {
	if r.pos >= len(r.payload) {
		return 0
	}
	channel := r.payload[r.pos]
	r.pos += 4
	return channel
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
