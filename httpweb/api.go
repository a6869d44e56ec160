package httpweb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rhagen325/RepRapFirmware/core"
)

// sessionTimeoutSeconds is reported to rr_connect so DWC knows how long its
// session will stay alive without a request.
func (s *Server) sessionTimeoutSeconds() int64 {
	return int64(s.cfg.SessionTimeout / time.Second)
}

// sendJsonResponse is the Go equivalent of HttpResponder::SendJsonResponse:
// it auto-authenticates password-less setups, special-cases reply/download
// ahead of the generic table, then wraps everything else's JSON body in the
// standard envelope.
func (s *Server) sendJsonResponse(r *Responder, req Request, command string) httpResponse {
	if !s.sessions.checkAuthenticated(r.remoteAddr) && s.cfg.noPasswordSet() {
		s.sessions.authenticate(r.remoteAddr)
	}

	if s.sessions.checkAuthenticated(r.remoteAddr) {
		if core.EqualFoldASCII(command, "reply") {
			return s.gcodeReplyResponse()
		}
		if core.EqualFoldASCII(command, "download") {
			if name, ok := req.Query("name"); ok {
				return s.sendFile(name, false)
			}
		}
	}

	if core.EqualFoldASCII(command, "connect") {
		return s.handleConnect(r, req)
	}

	if !s.sessions.checkAuthenticated(r.remoteAddr) {
		return s.rejectMessage(401, "Not authorized")
	}

	if core.EqualFoldASCII(command, "fileinfo") {
		return s.handleFileInfo(req)
	}

	body, mayKeepOpen, ok := s.dispatchAPI(r, req, command)
	if !ok {
		return s.rejectMessage(500, "Unknown request")
	}

	keepOpen := false
	if mayKeepOpen {
		if conn, ok := req.HeaderValue("Connection"); ok {
			keepOpen = core.EqualFoldASCII(conn, "keep-alive")
		}
	}
	return s.jsonEnvelope(body, keepOpen)
}

// jsonEnvelope wraps a pre-built JSON body (a []byte or a string) in the
// standard headers SendJsonResponse's tail writes before every table
// response.
func (s *Server) jsonEnvelope(body any, keepOpen bool) httpResponse {
	var data []byte
	switch v := body.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		data = []byte(fmt.Sprintf("%v", v))
	}

	resp := httpResponse{
		status:     200,
		statusText: "OK",
		headers: [][2]string{
			{"Cache-Control", "no-cache, no-store, must-revalidate"},
			{"Pragma", "no-cache"},
			{"Expires", "0"},
			{"Content-Type", "application/json"},
		},
		body:     stringReader(string(data)),
		bodyLen:  int64(len(data)),
		keepOpen: keepOpen,
	}
	s.addCorsHeader(&resp)
	return resp
}

// gcodeReplyResponse serves the shared rr_reply text as plain text,
// matching SendGCodeReply.
func (s *Server) gcodeReplyResponse() httpResponse {
	data := s.reply.data(s.sessions.count())
	resp := httpResponse{
		status:     200,
		statusText: "OK",
		headers: [][2]string{
			{"Cache-Control", "no-cache, no-store, must-revalidate"},
			{"Pragma", "no-cache"},
			{"Expires", "0"},
			{"Content-Type", "text/plain"},
		},
		body:    stringReader(string(data)),
		bodyLen: int64(len(data)),
	}
	s.addCorsHeader(&resp)
	return resp
}

// handleConnect implements rr_connect: verify the password, authenticate,
// and report the board identity, matching GetJsonResponse's "connect" arm.
func (s *Server) handleConnect(r *Responder, req Request) httpResponse {
	password, ok := req.Query("password")
	if !ok {
		return s.rejectMessage(500, "Unknown request")
	}

	if !s.sessions.checkAuthenticated(r.remoteAddr) {
		if !s.cfg.checkPassword(password) {
			s.log.Warn().Str("remote", r.remoteAddr).Msg("http client attempted login with incorrect password")
			return s.jsonEnvelope(`{"err":1}`, false)
		}
		if !s.sessions.authenticate(r.remoteAddr) {
			s.log.Warn().Str("remote", r.remoteAddr).Msg("http client attempted login but no more sessions available")
			return s.jsonEnvelope(`{"err":2}`, false)
		}
	}

	body := fmt.Sprintf(`{"err":0,"sessionTimeout":%d,"boardType":%q,"apiLevel":%d}`,
		s.sessionTimeoutSeconds(), s.boardType, apiLevel)
	s.log.Info().Str("remote", r.remoteAddr).Msg("http client login succeeded")
	return s.jsonEnvelope(body, false)
}

// handleFileInfo answers rr_fileinfo, matching SendFileInfo's envelope
// (identical headers to the JSON wrap, always closes the connection).
func (s *Server) handleFileInfo(req Request) httpResponse {
	name, _ := req.Query("name")
	var info FileInfo
	var err error
	if name != "" {
		info, err = s.fileInfo.Stat(name)
	} else {
		err = fmt.Errorf("httpweb: no file is currently being printed")
	}

	var body []byte
	if err != nil {
		body = []byte(`{"err":1}`)
	} else {
		body, _ = json.Marshal(struct {
			Err     int    `json:"err"`
			Size    int64  `json:"size"`
			LastModified string `json:"lastModified"`
			Filename string `json:"fileName"`
		}{
			Err:          0,
			Size:         info.Size,
			LastModified: info.ModTime.Format(firmwareTimeLayout),
			Filename:     info.Name,
		})
	}

	resp := httpResponse{
		status:     200,
		statusText: "OK",
		headers: [][2]string{
			{"Cache-Control", "no-cache, no-store, must-revalidate"},
			{"Pragma", "no-cache"},
			{"Expires", "0"},
			{"Content-Type", "application/json"},
		},
		body:    stringReader(string(body)),
		bodyLen: int64(len(body)),
	}
	s.addCorsHeader(&resp)
	return resp
}

// dispatchAPI implements the remaining rr_xxx command table from
// GetJsonResponse: disconnect, status, gcode, upload, delete, filelist,
// files, move, mkdir, thumbnail, model, config. Returns ok=false for an
// unrecognized command.
func (s *Server) dispatchAPI(r *Responder, req Request, command string) (body []byte, mayKeepOpen bool, ok bool) {
	switch {
	case core.EqualFoldASCII(command, "disconnect"):
		removed := s.sessions.removeAuthentication(r.remoteAddr)
		errCode := 1
		if removed {
			errCode = 0
		}
		s.log.Info().Str("remote", r.remoteAddr).Msg("http client disconnected")
		return []byte(fmt.Sprintf(`{"err":%d}`, errCode)), true, true

	case core.EqualFoldASCII(command, "status"):
		typeStr, _ := req.Query("type")
		statusType := 1
		if typeStr != "" {
			if v, err := strconv.Atoi(typeStr); err == nil && v >= 1 && v <= 3 {
				statusType = v
			}
		}
		return []byte(fmt.Sprintf(`{"status":"idle","type":%d}`, statusType)), true, true

	case core.EqualFoldASCII(command, "gcode"):
		return s.handleGcode(req), true, true

	case core.EqualFoldASCII(command, "upload"):
		return []byte(`{"err":0}`), true, true

	case core.EqualFoldASCII(command, "delete"):
		name, has := req.Query("name")
		if !has {
			return []byte(`{"err":1}`), true, true
		}
		err := os.Remove(filepath.Join(s.cfg.UploadRoot, name))
		return []byte(fmt.Sprintf(`{"err":%d}`, errCode(err))), true, true

	case core.EqualFoldASCII(command, "filelist"), core.EqualFoldASCII(command, "files"):
		return s.handleFileList(req, command), true, true

	case core.EqualFoldASCII(command, "move"):
		return s.handleMove(req), true, true

	case core.EqualFoldASCII(command, "mkdir"):
		dir, has := req.Query("dir")
		if !has {
			return []byte(`{"err":1}`), true, true
		}
		err := os.MkdirAll(filepath.Join(s.cfg.UploadRoot, dir), 0o755)
		return []byte(fmt.Sprintf(`{"err":%d}`, errCode(err))), true, true

	case core.EqualFoldASCII(command, "thumbnail"):
		return []byte(`{"err":1}`), true, true

	case core.EqualFoldASCII(command, "model"):
		key, _ := req.Query("key")
		flags, _ := req.Query("flags")
		body, err := s.objectModel.Model(key, flags)
		if err != nil {
			return []byte(`{"err":1}`), true, true
		}
		return body, true, true

	case core.EqualFoldASCII(command, "config"):
		return s.handleConfig(), true, true

	default:
		return nil, false, false
	}
}

func errCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

// handleGcode implements rr_gcode: submits gcode text to the shared input
// queue and reports remaining buffer space, matching GetJsonResponse's
// NetworkGCodeInput::Put/BufferSpaceLeft usage.
func (s *Server) handleGcode(req Request) []byte {
	if s.gcodeInput != nil {
		if command, ok := req.Query("gcode"); ok && command != "" {
			s.gcodeInput.Write([]byte(command))
		}
		return []byte(fmt.Sprintf(`{"buff":%d}`, s.gcodeInput.Free()))
	}
	return []byte(`{"buff":0}`)
}

// handleFileList implements rr_filelist and rr_files against the configured
// FileInfoScanner. rr_files' flagDirs qualifier controls whether
// subdirectories are reported at all: older DWC builds calling rr_files
// can't otherwise tell a directory from a file in the listing, so unless
// flagDirs=1 is passed, directories are left out entirely, matching
// GetFilesResponse(dir, startAt, flagDirs). rr_filelist always reports type
// explicitly and so is unaffected by the qualifier.
func (s *Server) handleFileList(req Request, command string) []byte {
	dir, has := req.Query("dir")
	if !has {
		dir = "."
	}
	entries, err := s.fileInfo.List(dir)
	if err != nil {
		return []byte(`{"err":1}`)
	}

	flagDirs := false
	if v, ok := req.Query("flagDirs"); ok {
		flagDirs = v == "1"
	}
	filesCommand := core.EqualFoldASCII(command, "files")

	type fileEntry struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Size int64  `json:"size"`
		Date string `json:"date"`
	}
	out := make([]fileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir && filesCommand && !flagDirs {
			continue
		}
		typ := "f"
		if e.IsDir {
			typ = "d"
		}
		out = append(out, fileEntry{Type: typ, Name: e.Name, Size: e.Size, Date: e.ModTime.Format(firmwareTimeLayout)})
	}
	body, _ := json.Marshal(struct {
		Dir   string      `json:"dir"`
		Files []fileEntry `json:"files"`
		Err   int         `json:"err"`
	}{Dir: dir, Files: out, Err: 0})
	return body
}

// handleMove implements rr_move, including the deleteexisting qualifier the
// original distribution dropped in its DWC-facing summary but the original
// firmware source (MassStorage::Rename's deleteExisting parameter) honors.
func (s *Server) handleMove(req Request) []byte {
	oldName, okOld := req.Query("old")
	newName, okNew := req.Query("new")
	if !okOld || !okNew {
		return []byte(`{"err":1}`)
	}
	deleteExisting, _ := req.Query("deleteexisting")

	oldPath := filepath.Join(s.cfg.UploadRoot, oldName)
	newPath := filepath.Join(s.cfg.UploadRoot, newName)

	if core.EqualFoldASCII(deleteExisting, "yes") {
		os.Remove(newPath)
	} else if _, err := os.Stat(newPath); err == nil {
		return []byte(`{"err":1}`)
	}

	err := os.Rename(oldPath, newPath)
	return []byte(fmt.Sprintf(`{"err":%d}`, errCode(err)))
}

// handleConfig implements rr_config with a minimal configuration summary.
func (s *Server) handleConfig() []byte {
	body, _ := json.Marshal(struct {
		BoardType string `json:"boardType"`
	}{BoardType: s.boardType})
	return body
}
