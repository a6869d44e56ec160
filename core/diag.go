package core

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Event type codes for the post-mortem timing ring buffer. These mirror the
// protocol-level events the original firmware's Diagnostics() calls surface.
const (
	EvtTransferHeader = 1 // TransferHeader exchange completed
	EvtTransferData   = 2 // ExchangingData completed
	EvtTransferReset  = 3 // Link force-restarted after a timeout
	EvtHttpReject     = 4 // HTTP parser rejected a message
	EvtSessionExpired = 5 // An HttpSession was dropped on idle timeout
	EvtUploadError    = 6 // An upload write failed
)

const ringSize = 32

// TimingEvent captures a protocol-level event for post-mortem analysis.
type TimingEvent struct {
	EventType uint8
	Channel   uint8
	Clock     uint32
	Value1    uint32
	Value2    uint32
}

var (
	loggerOnce sync.Once
	logger     zerolog.Logger

	ringMu   sync.Mutex
	ring     [ringSize]TimingEvent
	ringHead uint8
)

// EnvLogLevel names the environment variable that overrides the default log
// level.
const EnvLogLevel = "REPRAP_LOG_LEVEL"

// Log returns the process-wide structured logger, initializing it from
// environment overrides on first use.
func Log() zerolog.Logger {
	loggerOnce.Do(initLogger)
	return logger
}

func initLogger() {
	level := zerolog.InfoLevel
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}

	var w zerolog.ConsoleWriter
	w.Out = os.Stderr
	w.TimeFormat = time.RFC3339
	w.NoColor = !isatty.IsTerminal(os.Stderr.Fd())

	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// RecordEvent appends a protocol event to the ring buffer. It takes a
// mutex held only for the single slot write.
func RecordEvent(eventType, channel uint8, clock, value1, value2 uint32) {
	ringMu.Lock()
	defer ringMu.Unlock()
	ring[ringHead] = TimingEvent{
		EventType: eventType,
		Channel:   channel,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	ringHead = (ringHead + 1) % ringSize
}

// RingSnapshot returns a copy of the timing ring, oldest event first.
func RingSnapshot() []TimingEvent {
	ringMu.Lock()
	defer ringMu.Unlock()
	out := make([]TimingEvent, 0, ringSize)
	for i := uint8(0); i < ringSize; i++ {
		idx := (ringHead + i) % ringSize
		if ring[idx].EventType == 0 {
			continue
		}
		out = append(out, ring[idx])
	}
	return out
}
