package httpweb

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhagen325/RepRapFirmware/core"
)

// responderState names the phases one connection moves through, mirroring
// HttpResponder's ResponderState enum.
type responderState int

const (
	stateReading responderState = iota
	stateProcessingRequest
	stateGettingFileInfo
	stateUploading
	stateSending
	stateFree
)

// httpResponse is what every handler builds: a status line, an ordered
// header list, and a body that may be a byte slice or any io.Reader (a file
// being streamed out by sendFile).
type httpResponse struct {
	status     int
	statusText string
	headers    [][2]string
	body       io.Reader
	bodyLen    int64 // -1 means "write body.(io.Reader) until EOF"
	keepOpen   bool
}

const (
	errorPagePart1 = "<html><head><title>Error</title></head><body>Error: "
	errorPagePart2 = "</body></html>\n"
)

// rejectMessage builds the firmware's RejectMessage response: a status
// line, an HTML-wrapped error message, and a forced connection close.
func (s *Server) rejectMessage(code int, text string) httpResponse {
	s.log.Debug().Int("code", code).Str("reason", text).Msg("rejecting http request")
	resp := httpResponse{status: code, statusText: text}
	s.addCorsHeader(&resp)
	body := errorPagePart1 + text + errorPagePart2
	resp.body = stringReader(body)
	resp.bodyLen = int64(len(body))
	return resp
}

func stringReader(s string) io.Reader {
	return &byteReader{data: []byte(s)}
}

// byteReader is a minimal io.Reader over a fixed byte slice, used for the
// small generated bodies (rejects, JSON) that don't warrant bytes.Reader's
// extra seeking API.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// addCorsHeader appends Access-Control-Allow-Origin when a CORS site is
// configured, matching AddCorsHeader.
func (s *Server) addCorsHeader(resp *httpResponse) {
	if s.cfg.CorsSite != "" {
		resp.headers = append(resp.headers, [2]string{"Access-Control-Allow-Origin", s.cfg.CorsSite})
	}
}

// ReadTimeout is the read deadline Run sets on the connection before each
// request; if reading that request (including an upload body) has not
// finished by then, the connection is dropped, the way the firmware's timer
// field guards a stalled client.
const ReadTimeout = 30 * time.Second

// Responder drives one accepted connection through parse -> dispatch ->
// respond, the way one HttpResponder instance owns one client socket in the
// firmware's fixed pool of responders. Serve spawns one goroutine per
// connection instead of round-robining a fixed pool across Spin() calls.
type Responder struct {
	srv   *Server
	conn  net.Conn
	log   zerolog.Logger

	parser *Parser
	state  responderState

	remoteAddr string

	reader *bufio.Reader
}

// NewResponder wraps an accepted connection for one client.
func NewResponder(srv *Server, conn net.Conn) *Responder {
	return &Responder{
		srv:        srv,
		conn:       conn,
		log:        srv.log.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		parser:     NewParser(),
		state:      stateReading,
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// Serve accepts connections on ln until it errors or is closed, spawning
// one Responder goroutine per connection. Mirrors the firmware's
// per-protocol Accept loop, minus the fixed responder pool: Go's scheduler
// plays that role instead.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go NewResponder(s, conn).Run()
	}
}

// Run drives the connection to completion: read until the parser reports a
// finished or rejected request, dispatch it, write the response, and close
// or loop back to reading depending on keepOpen.
func (r *Responder) Run() {
	defer r.conn.Close()

	r.reader = bufio.NewReaderSize(r.conn, ClientMessageSize)
	for {
		r.state = stateReading
		r.parser.Reset()

		if err := r.conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
			return
		}

		done, rejected := r.readRequest(r.reader)
		if !done {
			return
		}

		r.state = stateProcessingRequest
		resp := r.dispatch(rejected)

		if err := r.writeResponse(resp); err != nil {
			r.log.Debug().Err(err).Msg("write response failed")
			return
		}
		if closer, ok := resp.body.(io.Closer); ok {
			closer.Close()
		}
		if !resp.keepOpen {
			return
		}
	}
}

// readRequest feeds the parser byte by byte until it reports the request
// complete (Feed returns true) or the connection errors out.
func (r *Responder) readRequest(reader *bufio.Reader) (done bool, rejected bool) {
	for {
		c, err := reader.ReadByte()
		if err != nil {
			return false, false
		}
		if r.parser.Feed(c) {
			if rej, _ := r.parser.Rejected(); rej {
				return true, true
			}
			return true, false
		}
	}
}

// dispatch turns a finished parse into a response, mirroring ProcessMessage
// handing off to ProcessRequest.
func (r *Responder) dispatch(rejected bool) httpResponse {
	if rejected {
		_, reason := r.parser.Rejected()
		core.RecordEvent(core.EvtHttpReject, 0, core.Millis(), 0, 0)
		return r.srv.rejectMessage(400, reason)
	}

	req, ok := newRequest(r.parser)
	if !ok {
		return r.srv.rejectMessage(400, "too few command words")
	}

	return r.srv.processRequest(r, req)
}

// writeResponse serializes resp onto the connection's wire, the Go
// equivalent of outBuf->catf()-ing a status line and headers before
// streaming the body.
func (r *Responder) writeResponse(resp httpResponse) error {
	w := bufio.NewWriter(r.conn)

	statusText := resp.statusText
	if statusText == "" {
		statusText = defaultStatusText(resp.status)
	}
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", resp.status, statusText); err != nil {
		return err
	}
	for _, h := range resp.headers {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", h[0], h[1]); err != nil {
			return err
		}
	}
	if resp.bodyLen >= 0 {
		if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n", resp.bodyLen); err != nil {
			return err
		}
	}
	connection := "close"
	if resp.keepOpen {
		connection = "keep-alive"
	}
	if _, err := fmt.Fprintf(w, "Connection: %s\r\n\r\n", connection); err != nil {
		return err
	}

	if resp.body != nil {
		if _, err := io.Copy(w, resp.body); err != nil {
			return err
		}
	}
	return w.Flush()
}

func defaultStatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}
