package httpweb

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rhagen325/RepRapFirmware/core"
)

// apiLevel is returned from rr_connect, mirroring the firmware's ApiLevel
// constant that tells DWC which feature set to expect.
const apiLevel = 1

// Server holds everything one running front-end needs: configuration, the
// session table, the shared G-code reply text, and the collaborators that
// answer file and object-model queries. Callers build exactly one Server
// and hand it to Serve or drive per-connection Responders directly.
type Server struct {
	cfg Config
	log zerolog.Logger

	sessions *sessionTable
	reply    *replyStack

	fileInfo    FileInfoScanner
	objectModel ObjectModelSource
	gcodeInput  GCodeInput

	boardType string
}

// NewServer builds a Server from cfg. gcodeInput and objectModel may be nil,
// in which case submitted gcode is dropped (rr_gcode reports {"buff":0})
// and rr_model answers from a
// static placeholder; a real daemon should supply both, backed by an
// sbclink.Link to the SBC side.
func NewServer(cfg Config, gcodeInput GCodeInput, objectModel ObjectModelSource, log zerolog.Logger) *Server {
	if objectModel == nil {
		objectModel = staticObjectModel{boardType: "unknown"}
	}
	return &Server{
		cfg:         cfg,
		log:         log,
		sessions:    newSessionTable(cfg.SessionTimeout),
		reply:       &replyStack{},
		fileInfo:    newStatFileInfoScanner(cfg.UploadRoot),
		objectModel: objectModel,
		gcodeInput:  gcodeInput,
		boardType:   "RepRapFirmware-Go",
	}
}

// HandleGCodeReply appends reply text for every client currently connected,
// mirroring the static HandleGCodeReply(const char*) the GCodes task calls.
func (s *Server) HandleGCodeReply(reply string) {
	if s.sessions.count() == 0 {
		return
	}
	s.reply.push([]byte(reply))
}

// ObjectModel answers a model query against the Server's configured
// ObjectModelSource, letting an sbclink.Link harness satisfy a
// ReqGetObjectModel request without reaching into Server's private fields.
func (s *Server) ObjectModel(module uint16) ([]byte, error) {
	return s.objectModel.Model(fmt.Sprintf("%d", module), "")
}

// CheckSessions evicts idle sessions and releases reply text nobody will
// ever fetch, mirroring the static CheckSessions poll. A daemon should call
// this on a timer (core.ScheduleTimer or a simple ticker both work).
func (s *Server) CheckSessions() {
	dropped := s.sessions.checkSessions()
	s.reply.dropForTimeout(dropped, s.sessions.count())
	if dropped > 0 {
		core.RecordEvent(core.EvtSessionExpired, 0, core.Millis(), uint32(dropped), 0)
	}
}
