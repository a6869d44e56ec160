package httpweb

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestProcessRequestGetApiCommand(t *testing.T) {
	cfg := DefaultConfig()
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	r := &Responder{remoteAddr: "10.0.0.1"}
	req := parseRequest(t, "GET /rr_status?type=1 HTTP/1.1\r\n\r\n")

	resp := srv.processRequest(r, req)
	if resp.status != 200 {
		t.Errorf("status = %d, want 200 for an auto-authenticated rr_status request", resp.status)
	}
}

func TestProcessRequestGetStaticFile(t *testing.T) {
	webRoot := t.TempDir()
	cfg := DefaultConfig()
	cfg.WebRoot = webRoot
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	r := &Responder{remoteAddr: "10.0.0.2"}
	req := parseRequest(t, "GET /missing.html HTTP/1.1\r\n\r\n")

	resp := srv.processRequest(r, req)
	if resp.status != 404 {
		t.Errorf("status = %d, want 404 for a GET of a nonexistent static file", resp.status)
	}
}

func TestProcessRequestOptions(t *testing.T) {
	cfg := DefaultConfig()
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	r := &Responder{remoteAddr: "10.0.0.3"}
	req := parseRequest(t, "OPTIONS /rr_status HTTP/1.1\r\n\r\n")

	resp := srv.processRequest(r, req)
	if resp.status != 204 {
		t.Errorf("status = %d, want 204 for an OPTIONS preflight", resp.status)
	}
}

func TestProcessRequestPostUnauthenticatedRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	r := &Responder{remoteAddr: "10.0.0.4"}
	req := parseRequest(t, "POST /rr_upload?name=a.g HTTP/1.1\r\nContent-Length: 0\r\n\r\n")

	resp := srv.processRequest(r, req)
	if resp.status != 500 {
		t.Errorf("status = %d, want 500 for an unauthenticated POST", resp.status)
	}
}

func TestProcessRequestUnknownMethod(t *testing.T) {
	cfg := DefaultConfig()
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	r := &Responder{remoteAddr: "10.0.0.5"}
	req := parseRequest(t, "DELETE /rr_status HTTP/1.1\r\n\r\n")

	resp := srv.processRequest(r, req)
	if resp.status != 500 {
		t.Errorf("status = %d, want 500 for an unsupported method", resp.status)
	}
}

func TestHandleUploadRequestMissingContentLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UploadRoot = t.TempDir()
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	r := &Responder{remoteAddr: "10.0.0.6"}
	req := parseRequest(t, "POST /rr_upload?name=a.g HTTP/1.1\r\n\r\n")

	resp := srv.handleUploadRequest(r, req)
	if resp.status != 500 {
		t.Errorf("status = %d, want 500 when Content-Length is missing", resp.status)
	}
	if !strings.Contains(resp.statusText, "invalid") {
		t.Errorf("statusText = %q, want a message about the invalid request", resp.statusText)
	}
}

func TestHandleUploadRequestWrongCommand(t *testing.T) {
	cfg := DefaultConfig()
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	r := &Responder{remoteAddr: "10.0.0.7"}
	req := parseRequest(t, "POST /rr_connect?password= HTTP/1.1\r\nContent-Length: 0\r\n\r\n")

	resp := srv.handleUploadRequest(r, req)
	if resp.status != 500 {
		t.Errorf("status = %d, want 500 for a POST command other than rr_upload", resp.status)
	}
}
