package httpweb

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestResponderRoundTripUnauthenticated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go NewResponder(srv, serverConn).Run()

	if _, err := clientConn.Write([]byte("GET /rr_status?type=1 HTTP/1.1\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	reader := bufio.NewReader(clientConn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.HasPrefix(statusLine, "HTTP/1.1 401") {
		t.Fatalf("status line = %q, want 401 for an unauthenticated client with a password configured", statusLine)
	}
}

func TestResponderRoundTripAutoAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "" // no password set: clients auto-authenticate
	srv := NewServer(cfg, nil, nil, zerolog.Nop())

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go NewResponder(srv, serverConn).Run()

	if _, err := clientConn.Write([]byte("GET /rr_status?type=1 HTTP/1.1\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	reader := bufio.NewReader(clientConn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.HasPrefix(statusLine, "HTTP/1.1 200") {
		t.Fatalf("status line = %q, want 200", statusLine)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil || line == "\r\n" {
			break
		}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `"status"`) {
		t.Errorf("body = %s, want a status field", body)
	}
}
