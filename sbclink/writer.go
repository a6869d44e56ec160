package sbclink

// Writer composes one transfer's outbound payload directly into a
// caller-owned buffer (normally a Link's txBuf), so the bytes it produces
// need no copy before being handed to a Peer. Packets are appended in
// order; the caller is responsible for calling CanWritePacket before each
// business method that isn't already self-checking.
type Writer struct {
	buf      []byte
	pos      int
	packetID uint16
	packets  uint16
}

// NewWriterOver binds a Writer to buf, which must have capacity
// TransferBufferSize and stay alive for the Writer's whole lifetime.
func NewWriterOver(buf []byte) *Writer {
	return &Writer{buf: buf, packetID: 1}
}

// Reset clears the Writer for the next transfer, restarting packet IDs at 1.
func (w *Writer) Reset() {
	w.pos = 0
	w.packetID = 1
	w.packets = 0
}

// Pos returns the current write cursor (== this transfer's data length so
// far).
func (w *Writer) Pos() int { return w.pos }

// NumPackets returns how many WritePacketHeader calls have been made this
// transfer.
func (w *Writer) NumPackets() uint16 { return w.packets }

// Payload returns the bytes written so far.
func (w *Writer) Payload() []byte { return w.buf[:w.pos] }

// CanWritePacket reports whether a packet with the given body length would
// fit in the remaining space, including header and start-of-packet padding.
func (w *Writer) CanWritePacket(dataLength int) bool {
	return AddPadding(w.pos)+PacketHeaderSize+dataLength <= TransferBufferSize
}

// WritePacketHeader reserves and writes a PacketHeader, returning its
// position in the buffer (for later mutation of Length, as WriteCodeReply
// needs) and the packet ID assigned.
func (w *Writer) WritePacketHeader(request uint16, dataLength int, resendPacketID uint16) (headerPos int, id uint16) {
	w.pos = AddPadding(w.pos)
	headerPos = w.pos

	h := PacketHeader{
		Request:        request,
		ID:             w.packetID,
		Length:         uint16(dataLength),
		ResendPacketID: resendPacketID,
	}
	copy(w.buf[w.pos:], h.Encode())
	w.pos += PacketHeaderSize
	id = w.packetID
	w.packetID++
	w.packets++
	return headerPos, id
}

// rewriteLength patches the length field of a previously written
// PacketHeader at headerPos, used by WriteCodeReply once the actual bytes
// written are known.
func (w *Writer) rewriteLength(headerPos int, length int) {
	putLeUint16(w.buf[headerPos+4:], uint16(length))
}

// WriteData appends raw bytes without padding, so adjacent strings can be
// concatenated before the next packet header re-aligns the cursor.
func (w *Writer) WriteData(data []byte) {
	w.pos += copy(w.buf[w.pos:], data)
}

// WriteDataHeader reserves n bytes for a typed header and returns their
// offset for the caller to encode into.
func (w *Writer) WriteDataHeader(n int) int {
	pos := w.pos
	w.pos += n
	return pos
}

// WriteState writes a ReportStateHeader packet naming which channels have
// output pending.
func (w *Writer) WriteState(busyChannels uint16) bool {
	if !w.CanWritePacket(4) {
		return false
	}
	w.WritePacketHeader(ReqReportState, 4, 0)
	pos := w.WriteDataHeader(4)
	putLeUint16(w.buf[pos:], busyChannels)
	return true
}

// WriteObjectModel writes a serialized object-model fragment for the given
// module. This packet type cannot be truncated: the whole fragment must fit
// or the call fails outright.
func (w *Writer) WriteObjectModel(module uint16, data []byte) bool {
	if !w.CanWritePacket(4 + len(data)) {
		return false
	}
	w.WritePacketHeader(ReqObjectModel, 4+len(data), 0)
	pos := w.WriteDataHeader(4)
	putLeUint16(w.buf[pos:], module)
	putLeUint16(w.buf[pos+2:], uint16(len(data)))
	w.WriteData(data)
	return true
}

// WriteCodeReply writes as much of reply as fits in the remaining space
// (requiring room for at least min(len(reply), 24) reply bytes so truncation
// has somewhere to start),
// setting PushFlag on messageType when bytes remain. It returns the unwritten
// remainder of reply and whether anything was written at all.
func (w *Writer) WriteCodeReply(messageType uint32, reply []byte) (remainder []byte, ok bool) {
	reserve := len(reply)
	if reserve > 24 {
		reserve = 24
	}
	if !w.CanWritePacket(8 + reserve) {
		return reply, false
	}

	headerPos, _ := w.WritePacketHeader(ReqCodeReply, 0, 0)
	replyHeaderPos := w.WriteDataHeader(8)

	bytesToCopy := TransferBufferSize - w.pos
	if bytesToCopy > len(reply) {
		bytesToCopy = len(reply)
	}
	if bytesToCopy < 0 {
		bytesToCopy = 0
	}
	w.WriteData(reply[:bytesToCopy])
	remainder = reply[bytesToCopy:]

	if len(remainder) > 0 {
		messageType |= PushFlag
	}
	putLeUint32(w.buf[replyHeaderPos:], messageType)
	putLeUint16(w.buf[replyHeaderPos+4:], uint16(bytesToCopy))

	w.rewriteLength(headerPos, 8+bytesToCopy)
	return remainder, true
}

// WriteMacroRequest asks the SBC to run a macro file on the given channel.
func (w *Writer) WriteMacroRequest(channel uint8, filename string, reportMissing bool) bool {
	n := len(filename)
	if !w.CanWritePacket(4 + n) {
		return false
	}
	w.WritePacketHeader(ReqMacroRequest, 4+n, 0)
	pos := w.WriteDataHeader(4)
	w.buf[pos] = channel
	if reportMissing {
		w.buf[pos+1] = 1
	}
	putLeUint16(w.buf[pos+2:], uint16(n))
	w.WriteData([]byte(filename))
	return true
}

// WriteAbortFileRequest asks the SBC to abort the active file on a channel.
func (w *Writer) WriteAbortFileRequest(channel uint8, abortAll bool) bool {
	if !w.CanWritePacket(4) {
		return false
	}
	w.WritePacketHeader(ReqAbortFileRequest, 4, 0)
	pos := w.WriteDataHeader(4)
	w.buf[pos] = channel
	if abortAll {
		w.buf[pos+1] = 1
	}
	return true
}

// WriteStackEvent reports a G-code stack push on a channel.
func (w *Writer) WriteStackEvent(channel, depth uint8, flags uint16, feedrate float32) bool {
	if !w.CanWritePacket(8) {
		return false
	}
	w.WritePacketHeader(ReqStackEvent, 8, 0)
	pos := w.WriteDataHeader(8)
	w.buf[pos] = channel
	w.buf[pos+1] = depth
	putLeUint16(w.buf[pos+2:], flags)
	putLeFloat32(w.buf[pos+4:], feedrate)
	return true
}

// WritePrintPaused reports where and why a print paused.
func (w *Writer) WritePrintPaused(filePosition uint32, reason uint8) bool {
	if !w.CanWritePacket(8) {
		return false
	}
	w.WritePacketHeader(ReqPrintPaused, 8, 0)
	pos := w.WriteDataHeader(8)
	putLeUint32(w.buf[pos:], filePosition)
	w.buf[pos+4] = reason
	return true
}

// WriteHeightMap writes a height-map snapshot header plus its Z-point array.
func (w *Writer) WriteHeightMap(grid HeightMapHeader, zPoints []float32) bool {
	grid.NumPoints = uint32(len(zPoints))
	bodyLen := 32 + len(zPoints)*4
	if !w.CanWritePacket(bodyLen) {
		return false
	}
	w.WritePacketHeader(ReqHeightMap, bodyLen, 0)
	pos := w.WriteDataHeader(32)
	putLeFloat32(w.buf[pos:], grid.XMin)
	putLeFloat32(w.buf[pos+4:], grid.XMax)
	putLeFloat32(w.buf[pos+8:], grid.XSpacing)
	putLeFloat32(w.buf[pos+12:], grid.YMin)
	putLeFloat32(w.buf[pos+16:], grid.YMax)
	putLeFloat32(w.buf[pos+20:], grid.YSpacing)
	putLeFloat32(w.buf[pos+24:], grid.Radius)
	putLeUint32(w.buf[pos+28:], grid.NumPoints)
	for _, z := range zPoints {
		zpos := w.WriteDataHeader(4)
		putLeFloat32(w.buf[zpos:], z)
	}
	return true
}

// WriteLocked reports that a channel acquired its requested lock.
func (w *Writer) WriteLocked(channel uint8) bool {
	if !w.CanWritePacket(4) {
		return false
	}
	w.WritePacketHeader(ReqLocked, 4, 0)
	pos := w.WriteDataHeader(4)
	w.buf[pos] = channel
	return true
}
