package httpweb

import (
	"strconv"
	"time"

	"github.com/rhagen325/RepRapFirmware/core"
)

// firmwareTimeLayout is the "%Y-%m-%dT%H:%M:%S" format DWC sends for the
// time upload qualifier, matching SafeStrptime's format string. The crc32
// qualifier is plain hex and does not use it.
const firmwareTimeLayout = "2006-01-02T15:04:05"

// processRequest routes a fully parsed request to its handler, mirroring
// HttpResponder::ProcessRequest's GET/OPTIONS/POST split.
func (s *Server) processRequest(r *Responder, req Request) httpResponse {
	switch {
	case core.EqualFoldASCII(req.Method, "GET"):
		if cmd, ok := req.apiCommand(); ok {
			return s.sendJsonResponse(r, req, cmd)
		}
		return s.sendFile(req.Target, true)

	case core.EqualFoldASCII(req.Method, "OPTIONS"):
		return s.optionsResponse()

	case core.EqualFoldASCII(req.Method, "POST"):
		if !s.sessions.checkAuthenticated(r.remoteAddr) {
			return s.rejectMessage(500, "Unknown message type or not authenticated")
		}
		return s.handleUploadRequest(r, req)

	default:
		return s.rejectMessage(500, "Unknown message type or not authenticated")
	}
}

// optionsResponse answers the CORS preflight, matching ProcessRequest's
// OPTIONS branch.
func (s *Server) optionsResponse() httpResponse {
	resp := httpResponse{
		status:     204,
		statusText: "No Content",
		headers: [][2]string{
			{"Allow", "OPTIONS, GET, POST"},
			{"Cache-Control", "no-cache, no-store, must-revalidate"},
			{"Pragma", "no-cache"},
			{"Expires", "0"},
		},
		bodyLen: 0,
	}
	if s.cfg.CorsSite != "" {
		resp.headers = append(resp.headers, [2]string{"Access-Control-Allow-Headers", "Content-Type"})
		s.addCorsHeader(&resp)
	}
	return resp
}

// handleUploadRequest implements the POST branch of ProcessRequest: only
// rr_upload is supported, and it must carry name, Content-Length, and
// optionally crc32 and time qualifiers/headers.
func (s *Server) handleUploadRequest(r *Responder, req Request) httpResponse {
	if cmd, ok := req.apiCommand(); !ok || !core.EqualFoldASCII(cmd, "upload") {
		return s.rejectMessage(500, "only rr_upload is supported for POST requests")
	}

	filename, ok := req.Query("name")
	if !ok {
		return s.rejectMessage(500, "only rr_upload is supported for POST requests")
	}

	lengthStr, ok := req.HeaderValue("Content-Length")
	if !ok {
		return s.rejectMessage(500, "invalid POST upload request")
	}
	length, err := strconv.ParseInt(lengthStr, 10, 64)
	if err != nil || length < 0 {
		return s.rejectMessage(500, "invalid POST upload request")
	}

	var expectCrc uint32
	haveCrc := false
	if crcStr, ok := req.Query("crc32"); ok {
		v, err := strconv.ParseUint(crcStr, 16, 32)
		if err == nil {
			expectCrc = uint32(v)
			haveCrc = true
		}
	}

	upload, err := s.startUpload(filename, length, expectCrc, haveCrc)
	if err != nil {
		return s.rejectMessage(500, "could not create file")
	}
	if timeStr, ok := req.Query("time"); ok {
		if t, err := time.Parse(firmwareTimeLayout, timeStr); err == nil {
			upload.lastModified = t
		}
	}

	s.sessions.setUploading(r.remoteAddr, true)
	r.state = stateUploading
	err = upload.readBody(r.reader)
	s.sessions.setUploading(r.remoteAddr, false)

	if err != nil {
		upload.cancel()
		core.RecordEvent(core.EvtUploadError, 0, core.Millis(), 0, 0)
		return s.jsonEnvelope(`{"err":1}`, false)
	}

	_, crcOk := upload.finish()
	if !crcOk {
		core.RecordEvent(core.EvtUploadError, 0, core.Millis(), 0, 0)
		return s.jsonEnvelope(`{"err":1}`, false)
	}
	return s.jsonEnvelope(`{"err":0}`, false)
}
