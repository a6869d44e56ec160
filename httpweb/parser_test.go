package httpweb

import "testing"

func feedAll(p *Parser, s string) bool {
	for i := 0; i < len(s); i++ {
		if p.Feed(s[i]) {
			return true
		}
	}
	return false
}

func TestParserGetRequest(t *testing.T) {
	p := NewParser()
	done := feedAll(p, "GET /rr_status?type=2 HTTP/1.1\r\nHost: x\r\n\r\n")

	if !done {
		t.Fatal("parser never reported completion")
	}
	if p.NumCommandWords() != 3 {
		t.Fatalf("NumCommandWords() = %d, want 3", p.NumCommandWords())
	}
	want := []string{"GET", "/rr_status", "HTTP/1.1"}
	for i, w := range want {
		if got := p.CommandWord(i); got != w {
			t.Errorf("CommandWord(%d) = %q, want %q", i, got, w)
		}
	}
	if p.NumQualifiers() != 1 {
		t.Fatalf("NumQualifiers() = %d, want 1", p.NumQualifiers())
	}
	key, value := p.Qualifier(0)
	if key != "type" || value != "2" {
		t.Errorf("Qualifier(0) = %q=%q, want type=2", key, value)
	}
}

func TestParserPercentDecode(t *testing.T) {
	p := NewParser()
	if !feedAll(p, "GET /rr_delete?name=foo%2Fbar.g HTTP/1.1\r\n\r\n") {
		t.Fatal("parser never reported completion")
	}
	value, ok := p.QualifierValue("name")
	if !ok {
		t.Fatal("QualifierValue(\"name\") missing")
	}
	if value != "foo/bar.g" {
		t.Errorf("QualifierValue(\"name\") = %q, want %q", value, "foo/bar.g")
	}
}

func TestParserTrailingQuestionMark(t *testing.T) {
	p := NewParser()
	// Only feed through the trailing '?' and the space after it; the
	// original's "two command words, no qualifier keys" description names
	// this intermediate point, not the fully parsed request line.
	prefix := "GET /fonts/x.eot? "
	for i := 0; i < len(prefix); i++ {
		if p.Feed(prefix[i]) {
			t.Fatalf("parser reported completion early, at byte %d", i)
		}
	}

	if p.NumCommandWords() != 2 {
		t.Errorf("NumCommandWords() = %d, want 2", p.NumCommandWords())
	}
	if p.NumQualifiers() != 0 {
		t.Errorf("NumQualifiers() = %d, want 0", p.NumQualifiers())
	}
}

func TestParserNeverOverflowsBuffer(t *testing.T) {
	p := NewParser()
	huge := make([]byte, ClientMessageSize*2)
	for i := range huge {
		huge[i] = 'a'
	}

	rejected := false
	for _, c := range huge {
		if p.Feed(c) {
			rejected = true
			break
		}
	}
	if !rejected {
		t.Fatal("parser should have rejected a message exceeding ClientMessageSize")
	}
	if ok, _ := p.Rejected(); !ok {
		t.Error("Rejected() should report true once Feed rejects")
	}
}

func TestParserLowercaseEscapeRejected(t *testing.T) {
	p := NewParser()
	feedAll(p, "GET /rr_delete?name=foo%2fbar.g HTTP/1.1\r\n\r\n")
	if ok, _ := p.Rejected(); !ok {
		t.Error("lowercase percent-escape should be rejected, matching the documented uppercase-only behavior")
	}
}

func TestParserReset(t *testing.T) {
	p := NewParser()
	feedAll(p, "GET /rr_status HTTP/1.1\r\n\r\n")
	p.Reset()
	if p.NumCommandWords() != 0 {
		t.Errorf("after Reset, NumCommandWords() = %d, want 0", p.NumCommandWords())
	}
	if !feedAll(p, "GET /rr_config HTTP/1.1\r\n\r\n") {
		t.Fatal("parser did not complete a second request after Reset")
	}
	if got := p.CommandWord(1); got != "/rr_config" {
		t.Errorf("CommandWord(1) = %q, want /rr_config", got)
	}
}
