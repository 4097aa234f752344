package connio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
)

// Handler answers one parsed HTTP request. The default handler used by
// NewProcessor is a minimal responder; real deployments supply their
// own to NewProcessor.
type Handler func(method, path string, header textproto.MIMEHeader) (status int, extraHeader map[string]string, body []byte)

// DefaultHandler answers every request with a 200 and a tiny body,
// enough to drive keep-alive and pipelining end to end without pulling
// in a routing framework, which spec.md places out of scope.
func DefaultHandler(method, path string, _ textproto.MIMEHeader) (int, map[string]string, []byte) {
	body := []byte("ok\n")
	if method == "HEAD" {
		body = nil
	}
	return 200, map[string]string{"Content-Type": "text/plain; charset=utf-8"}, body
}

// Processor implements the process_request contract of spec.md §6: it
// owns request dispatch and response serialization, both out of scope
// for the reactor core proper.
type Processor struct {
	Handler Handler
}

func NewProcessor(h Handler) *Processor {
	if h == nil {
		h = DefaultHandler
	}
	return &Processor{Handler: h}
}

// statusText covers just the codes DefaultHandler and error paths use;
// a full table is unnecessary for an out-of-scope collaborator.
var statusText = map[int]string{
	200: "OK",
	204: "No Content",
	400: "Bad Request",
	404: "Not Found",
	505: "HTTP Version Not Supported",
}

// Process implements process_request(server, request, read_buffer,
// continuation_cursor) -> next_continuation_cursor_or_null (spec.md
// §6), using a byte offset into readBuf as the cursor and -1 for null.
//
// It consumes a PROXY protocol v1 header once per connection if
// ctx.AllowProxyReqs and none has been seen yet, parses exactly one
// HTTP/1.1 request starting at cursor, writes a response into
// ctx.ResponseBuf, and returns the offset of the next pipelined request
// if readBuf holds more than one request's worth of bytes.
func (p *Processor) Process(ctx *Context, readBuf []byte, cursor int) (nextCursor int, err error) {
	if cursor < 0 {
		cursor = 0
	}
	cursor += ctx.proxyHeaderLen
	buf := readBuf[cursor:]

	if ctx.AllowProxyReqs && !ctx.Proxied {
		if hdr, perr := ParseProxyV1(buf); perr == nil {
			ctx.Proxied = true
			ctx.ProxySrc = hdr.SrcAddr
			ctx.ProxyDst = hdr.DstAddr
			ctx.proxyHeaderLen += hdr.Consumed
			buf = buf[hdr.Consumed:]
			cursor += hdr.Consumed
		} else if perr != ErrNotProxyHeader {
			return -1, perr
		}
	}

	reader := bufio.NewReader(bytes.NewReader(buf))
	tp := textproto.NewReader(reader)

	if bytes.IndexByte(buf, '\n') < 0 {
		// No line terminator yet: the request line is still arriving.
		return -1, ErrIncompleteRequest
	}
	requestLine, err := tp.ReadLine()
	if err != nil {
		if isIncomplete(err) {
			return -1, ErrIncompleteRequest
		}
		return -1, err
	}
	method, path, proto, err := parseRequestLine(requestLine)
	if err != nil {
		ctx.KeepAlive = false
		p.writeError(ctx, 400)
		return -1, nil
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil {
		if isIncomplete(err) {
			return -1, ErrIncompleteRequest
		}
		ctx.KeepAlive = false
		p.writeError(ctx, 400)
		return -1, nil
	}

	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		ctx.KeepAlive = false
		p.writeError(ctx, 505)
		return -1, nil
	}

	ctx.KeepAlive = keepAliveFor(proto, header)

	status, extraHeader, body := p.Handler(method, path, header)
	p.writeResponse(ctx, status, extraHeader, body)

	consumed := len(buf) - reader.Buffered()
	next := cursor + consumed
	if next < len(readBuf) {
		return next, nil
	}
	return -1, nil
}

// isIncomplete reports whether err is textproto/bufio's way of saying
// "buf ended before a full line or header block was found" rather than
// a genuine protocol violation.
func isIncomplete(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func parseRequestLine(line string) (method, path, proto string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("connio: malformed request line %q", line)
	}
	return parts[0], parts[1], parts[2], nil
}

func keepAliveFor(proto string, header textproto.MIMEHeader) bool {
	conn := strings.ToLower(header.Get("Connection"))
	switch proto {
	case "HTTP/1.1":
		return conn != "close"
	default: // HTTP/1.0
		return conn == "keep-alive"
	}
}

func (p *Processor) writeError(ctx *Context, status int) {
	p.writeResponse(ctx, status, nil, []byte(statusText[status]+"\n"))
}

func (p *Processor) writeResponse(ctx *Context, status int, extraHeader map[string]string, body []byte) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, statusText[status])
	fmt.Fprintf(&b, "Date: %s\r\n", ctx.DateHeader)
	if ctx.AllowCORS {
		fmt.Fprintf(&b, "Access-Control-Allow-Origin: *\r\n")
		fmt.Fprintf(&b, "Access-Control-Allow-Methods: GET, HEAD, POST, OPTIONS\r\n")
	}
	if !ctx.KeepAlive {
		fmt.Fprintf(&b, "Connection: close\r\n")
	} else {
		fmt.Fprintf(&b, "Connection: keep-alive\r\n")
	}
	for k, v := range extraHeader {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	fmt.Fprintf(&b, "Content-Length: %s\r\n\r\n", strconv.Itoa(len(body)))
	b.Write(body)
	ctx.AppendResponse(b.Bytes())
}
