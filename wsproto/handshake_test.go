package wsproto

import (
	"net/http"
	"strings"
	"testing"
)

func TestAcceptKnownVector(t *testing.T) {
	// Scenario 4 from spec.md §8.
	got := Accept("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestIsUpgradeRequest(t *testing.T) {
	h := http.Header{}
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	if !IsUpgradeRequest(h) {
		t.Fatal("expected upgrade request to be recognized")
	}
}

func TestHandshakeResponseEchoesProtocol(t *testing.T) {
	out := string(HandshakeResponse("dGhlIHNhbXBsZSBub25jZQ==", "chat"))
	if !strings.Contains(out, "Sec-WebSocket-Protocol: chat") {
		t.Fatalf("missing echoed protocol: %s", out)
	}
	if !strings.HasPrefix(out, "HTTP/1.1 101 Switching Protocols\r\n") {
		t.Fatalf("bad status line: %s", out)
	}
}
