package connio

// Context carries everything process_request needs for one iteration,
// per spec.md §4.1 step 1 ("Construct a request context referencing
// this connection, fd, response buffer, carried-over flags ... and a
// proxy struct"). The reactor package constructs one per iteration and
// reads back MustRead/KeepAlive/Proxied/AllowCORS after Processor.Process
// returns.
type Context struct {
	Fd int

	// ResponseBuf is the connection's persistent response buffer
	// (spec.md §4.1: storage must span every iteration). Process
	// appends to it; the reactor flushes and resets it between
	// iterations.
	ResponseBuf []byte

	// AllowProxyReqs and AllowCORS are the iteration's initial flags,
	// derived from server config by the reactor before calling
	// Process (spec.md §4.1).
	AllowProxyReqs bool
	AllowCORS      bool

	// Proxied carries over from a prior iteration once a PROXY header
	// has been consumed on this connection (spec.md §3 carried flags).
	Proxied  bool
	ProxySrc string
	ProxyDst string

	// MustRead lets Process force the next multiplexer wait to
	// be for readability (spec.md §6 "may set CONN_MUST_READ").
	MustRead bool

	// KeepAlive reports whether the connection should remain open for
	// another iteration.
	KeepAlive bool

	// DateHeader and ExpiresHeader are the worker's cached, pre-formatted
	// header values (spec.md §4.6); Process never formats time
	// itself.
	DateHeader    string
	ExpiresHeader string

	// proxyHeaderLen caches how many leading bytes of the connection's
	// read buffer the PROXY protocol header occupied, once parsed, so a
	// retry after an ErrIncompleteRequest (the rest of the HTTP request
	// hadn't arrived yet) does not re-scan bytes already consumed.
	proxyHeaderLen int
}

// AppendResponse appends data to the context's response buffer.
func (c *Context) AppendResponse(data []byte) {
	c.ResponseBuf = append(c.ResponseBuf, data...)
}
