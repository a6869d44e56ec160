package httpweb

import "github.com/rhagen325/RepRapFirmware/core"

// koPrefix marks a GET target as a REST API call rather than a static file
// request: GET /rr_status and GET rr_status are both API calls, everything
// else is served from the web root.
const koPrefix = "rr_"

// Request is the fully parsed form of one HTTP message, built from a Parser
// once Feed has reported the blank line ending the headers.
type Request struct {
	Method  string
	Target  string
	Version string

	p *Parser
}

// newRequest captures the command words off a finished Parser. It does not
// copy qualifiers or headers; callers still read those through p.
func newRequest(p *Parser) (Request, bool) {
	if p.NumCommandWords() < 2 {
		return Request{}, false
	}
	return Request{
		Method:  p.CommandWord(0),
		Target:  p.CommandWord(1),
		Version: p.CommandWord(2),
		p:       p,
	}, true
}

// Query returns the value of a query-string qualifier, case-sensitively.
func (r Request) Query(key string) (string, bool) {
	return r.p.QualifierValue(key)
}

// HeaderValue returns a header's value, matching case-insensitively the way
// the original firmware's StringEqualsIgnoreCase header lookup does.
func (r Request) HeaderValue(key string) (string, bool) {
	for i := 0; i < r.p.NumHeaders(); i++ {
		k, v := r.p.Header(i)
		if core.EqualFoldASCII(k, key) {
			return v, true
		}
	}
	return "", false
}

// apiCommand reports whether the target names a REST API command (the
// "rr_xxx" or "/rr_xxx" convention) and returns the command name with the
// prefix stripped.
func (r Request) apiCommand() (string, bool) {
	target := r.Target
	if len(target) > 0 && target[0] == '/' {
		target = target[1:]
	}
	if core.HasPrefixFoldASCII(target, koPrefix) {
		return target[len(koPrefix):], true
	}
	return "", false
}
