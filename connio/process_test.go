package connio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessSimpleRequest(t *testing.T) {
	p := NewProcessor(nil)
	ctx := &Context{DateHeader: "Mon, 01 Jan 2024 00:00:00 GMT"}
	req := "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"

	next, err := p.Process(ctx, []byte(req), -1)
	require.NoError(t, err)
	require.Equal(t, -1, next)
	require.True(t, ctx.KeepAlive)
	require.Contains(t, string(ctx.ResponseBuf), "HTTP/1.1 200 OK")
	require.Contains(t, string(ctx.ResponseBuf), "ok\n")
}

func TestProcessConnectionClose(t *testing.T) {
	p := NewProcessor(nil)
	ctx := &Context{DateHeader: "x"}
	req := "GET / HTTP/1.1\r\nConnection: close\r\n\r\n"

	_, err := p.Process(ctx, []byte(req), -1)
	require.NoError(t, err)
	require.False(t, ctx.KeepAlive)
	require.Contains(t, string(ctx.ResponseBuf), "Connection: close")
}

func TestProcessCORS(t *testing.T) {
	p := NewProcessor(nil)
	ctx := &Context{DateHeader: "x", AllowCORS: true}
	req := "GET / HTTP/1.1\r\n\r\n"

	_, err := p.Process(ctx, []byte(req), -1)
	require.NoError(t, err)
	require.Contains(t, string(ctx.ResponseBuf), "Access-Control-Allow-Origin: *")
}

func TestProcessPipelinedRequestsReturnCursor(t *testing.T) {
	p := NewProcessor(nil)
	ctx := &Context{DateHeader: "x"}
	first := "GET /a HTTP/1.1\r\n\r\n"
	second := "GET /b HTTP/1.1\r\n\r\n"
	buf := []byte(first + second)

	next, err := p.Process(ctx, buf, -1)
	require.NoError(t, err)
	require.Equal(t, len(first), next)

	ctx.ResponseBuf = nil
	next2, err := p.Process(ctx, buf, next)
	require.NoError(t, err)
	require.Equal(t, -1, next2)
}

func TestProcessProxyHeaderConsumedOnce(t *testing.T) {
	p := NewProcessor(nil)
	ctx := &Context{DateHeader: "x", AllowProxyReqs: true}
	req := "PROXY TCP4 10.0.0.1 10.0.0.2 1234 80\r\nGET / HTTP/1.1\r\n\r\n"

	_, err := p.Process(ctx, []byte(req), -1)
	require.NoError(t, err)
	require.True(t, ctx.Proxied)
	require.Equal(t, "10.0.0.1:1234", ctx.ProxySrc)
}

func TestProcessMalformedRequestLine(t *testing.T) {
	p := NewProcessor(nil)
	ctx := &Context{DateHeader: "x"}
	next, err := p.Process(ctx, []byte("garbage\r\n\r\n"), -1)
	require.NoError(t, err)
	require.Equal(t, -1, next)
	require.False(t, ctx.KeepAlive)
	require.Contains(t, string(ctx.ResponseBuf), "400")
}

func TestProcessIncompleteRequestLineAsksForMoreData(t *testing.T) {
	p := NewProcessor(nil)
	ctx := &Context{DateHeader: "x"}
	_, err := p.Process(ctx, []byte("GET /"), -1)
	require.ErrorIs(t, err, ErrIncompleteRequest)
	require.Nil(t, ctx.ResponseBuf)
}

func TestProcessIncompleteHeadersAsksForMoreData(t *testing.T) {
	p := NewProcessor(nil)
	ctx := &Context{DateHeader: "x"}
	_, err := p.Process(ctx, []byte("GET / HTTP/1.1\r\nHost: example.com\r\n"), -1)
	require.ErrorIs(t, err, ErrIncompleteRequest)
	require.Nil(t, ctx.ResponseBuf)
}

func TestProcessIncompleteRequestRetriesAfterProxyHeaderConsumed(t *testing.T) {
	p := NewProcessor(nil)
	ctx := &Context{DateHeader: "x", AllowProxyReqs: true}
	partial := []byte("PROXY TCP4 10.0.0.1 10.0.0.2 1234 80\r\nGET / HTTP/1.1\r\n")

	_, err := p.Process(ctx, partial, -1)
	require.ErrorIs(t, err, ErrIncompleteRequest)
	require.True(t, ctx.Proxied)

	full := append(partial, []byte("\r\n")...)
	next, err := p.Process(ctx, full, -1)
	require.NoError(t, err)
	require.Equal(t, -1, next)
	require.Equal(t, "10.0.0.1:1234", ctx.ProxySrc)
}
