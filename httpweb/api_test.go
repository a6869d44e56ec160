package httpweb

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rhagen325/RepRapFirmware/sbclink"
)

func readResponseBody(t *testing.T, resp httpResponse) string {
	t.Helper()
	if resp.body == nil {
		return ""
	}
	data, err := io.ReadAll(resp.body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(data)
}

func connectRequest(t *testing.T, password string) Request {
	return parseRequest(t, fmt.Sprintf("GET /rr_connect?password=%s HTTP/1.1\r\n\r\n", password))
}

func TestHandleConnectSessionExhaustion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	for i := 0; i < MaxSessions; i++ {
		r := &Responder{remoteAddr: fmt.Sprintf("10.0.0.%d", i)}
		resp := srv.handleConnect(r, connectRequest(t, "secret"))
		body := readResponseBody(t, resp)
		if !strings.Contains(body, `"err":0`) {
			t.Fatalf("connect %d: body = %s, want err:0", i, body)
		}
	}

	r := &Responder{remoteAddr: "10.0.0.99"}
	resp := srv.handleConnect(r, connectRequest(t, "secret"))
	body := readResponseBody(t, resp)
	if !strings.Contains(body, `"err":2`) {
		t.Errorf("connect from the MaxSessions+1'th address: body = %s, want err:2", body)
	}
}

func TestHandleConnectBadPassword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	r := &Responder{remoteAddr: "10.0.0.1"}
	resp := srv.handleConnect(r, connectRequest(t, "wrong"))
	body := readResponseBody(t, resp)
	if !strings.Contains(body, `"err":1`) {
		t.Errorf("body = %s, want err:1 for a wrong password", body)
	}
}

func TestHandleGcodeFeedsInput(t *testing.T) {
	cfg := DefaultConfig()
	input := sbclink.NewFifoBuffer(16)
	srv := NewServer(cfg, input, nil, zerolog.Nop())

	req := parseRequest(t, "GET /rr_gcode?gcode=G28 HTTP/1.1\r\n\r\n")
	body := srv.handleGcode(req)
	if !strings.Contains(string(body), `"buff"`) {
		t.Errorf("handleGcode body = %s, want a buff field", body)
	}
	if got := input.Read(make([]byte, 16)); got == 0 {
		t.Error("handleGcode should have written the submitted gcode into the input buffer")
	}
}
