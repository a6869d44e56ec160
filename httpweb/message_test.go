package httpweb

import "testing"

func parseRequest(t *testing.T, raw string) Request {
	t.Helper()
	p := NewParser()
	if !feedAll(p, raw) {
		t.Fatal("parser never completed")
	}
	if ok, reason := p.Rejected(); ok {
		t.Fatalf("parser rejected the request: %s", reason)
	}
	req, ok := newRequest(p)
	if !ok {
		t.Fatal("newRequest refused a fully parsed request")
	}
	return req
}

func TestRequestFields(t *testing.T) {
	req := parseRequest(t, "GET /rr_status?type=2 HTTP/1.1\r\nHost: x\r\n\r\n")
	if req.Method != "GET" || req.Target != "/rr_status" || req.Version != "HTTP/1.1" {
		t.Errorf("got %+v", req)
	}
	if v, ok := req.Query("type"); !ok || v != "2" {
		t.Errorf("Query(\"type\") = %q, %v", v, ok)
	}
	if _, ok := req.Query("missing"); ok {
		t.Error("Query should report false for a key that wasn't present")
	}
}

func TestRequestHeaderValueCaseInsensitive(t *testing.T) {
	req := parseRequest(t, "GET /rr_status HTTP/1.1\r\nContent-Length: 4\r\n\r\n")
	if v, ok := req.HeaderValue("content-length"); !ok || v != "4" {
		t.Errorf("HeaderValue(\"content-length\") = %q, %v, want 4 true", v, ok)
	}
}

func TestRequestApiCommand(t *testing.T) {
	cases := []struct {
		target  string
		wantCmd string
		wantOk  bool
	}{
		{"/rr_status", "status", true},
		{"rr_status", "status", true},
		{"/RR_Connect", "Connect", true},
		{"/index.html", "", false},
		{"/", "", false},
	}
	for _, c := range cases {
		req := Request{Method: "GET", Target: c.target}
		cmd, ok := req.apiCommand()
		if ok != c.wantOk || cmd != c.wantCmd {
			t.Errorf("apiCommand() on %q = %q, %v, want %q, %v", c.target, cmd, ok, c.wantCmd, c.wantOk)
		}
	}
}

func TestNewRequestRejectsTooFewCommandWords(t *testing.T) {
	p := NewParser()
	if _, ok := newRequest(p); ok {
		t.Error("newRequest should refuse a Parser with no command words yet")
	}
}
