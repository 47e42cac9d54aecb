package conn

// UpgradeTo switches the Conn's framing mode after a worker has queued the
// handshake/preamble Response, matching spec.md §4.6's rule that a 101 (or
// an SSE 200 with text/event-stream) status response carries the connection
// across into its new Kind once fully written.
func (c *Conn) UpgradeTo(kind Kind) {
	c.Kind = kind
	c.wsBuf = c.wsBuf[:0]
	c.touch()
}
