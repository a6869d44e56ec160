package httpweb

import (
	"sync"

	"github.com/rhagen325/RepRapFirmware/sbclink"
)

// replyStack is the shared G-code reply text that every connected client can
// fetch via rr_reply, mirroring the firmware's static gcodeReply OutputStack
// plus its clientsServed counter. A sbclink.ReplyBuffer backs each pending
// chunk; data copies a chunk's bytes out on every fetch, so clientsServed
// alone (not a per-chunk hold count) decides when a chunk is Released.
type replyStack struct {
	mu           sync.Mutex
	chunks       []*sbclink.ReplyBuffer
	clientsServed int
	seq          uint16
}

// push appends reply text from the G-code layer as a freshly owned chunk.
func (s *replyStack) push(data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = append(s.chunks, sbclink.NewReplyBuffer(data))
	s.clientsServed = 0
	s.seq++
}

// data concatenates every pending chunk for one client's rr_reply response
// and records that this client has now been served, releasing chunks no
// other client still needs the way clientsServed does against numSessions.
func (s *replyStack) data(numSessions int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunks) == 0 {
		return nil
	}

	total := 0
	for _, c := range s.chunks {
		total += len(c.Data)
	}
	out := make([]byte, 0, total)
	for _, c := range s.chunks {
		out = append(out, c.Data...)
	}

	s.clientsServed++
	if s.clientsServed >= numSessions {
		s.clear()
	}
	return out
}

// isEmpty reports whether there is no pending reply text.
func (s *replyStack) isEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks) == 0
}

// sequence returns a counter that advances on every push, letting a
// long-polling client tell whether a new reply has arrived without
// re-fetching the text.
func (s *replyStack) sequence() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// clear releases every pending chunk. Callers must hold s.mu.
func (s *replyStack) clear() {
	for _, c := range s.chunks {
		c.Release()
	}
	s.chunks = s.chunks[:0]
	s.clientsServed = 0
}

// dropForTimeout accounts for sessions evicted by idle timeout: they will
// never fetch the pending reply, so once every remaining session has either
// fetched it or timed out, the reply can be released. Mirrors CheckSessions'
// "assume the disconnected clients haven't fetched the G-Code reply yet"
// bookkeeping.
func (s *replyStack) dropForTimeout(clientsTimedOut, numSessions int) {
	if clientsTimedOut == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clientsServed += clientsTimedOut
	if numSessions == 0 || s.clientsServed >= numSessions {
		s.clear()
	}
}
