package server

import (
	"fmt"

	"github.com/ohler55/agoo-sub000/text"
)

func responseText(b []byte) *text.Text {
	return text.Create(b)
}

func notFoundResponse() *text.Text {
	body := "404 Not Found"
	return text.Create([]byte(fmt.Sprintf(
		"HTTP/1.1 404 Not Found\r\nContent-Type: text/plain\r\nContent-Length: %d\r\n\r\n%s",
		len(body), body)))
}

// sseHandshakeResponse formats the initial 200 response for an SSE upgrade:
// a streaming Content-Type with no Content-Length, followed immediately by
// the client-side retry preamble, matching spec.md §4.6's SSE upgrade rule.
func sseHandshakeResponse() []byte {
	return []byte("HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nConnection: keep-alive\r\nCache-Control: no-cache\r\n\r\nretry: 5\n\n")
}
