package reactor

import (
	"bufio"
	"net"
	"net/textproto"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/emberhttp/reactor/connio"
)

// testDupFD mirrors cmd/reactord's accept-loop handoff: duplicate the
// accepted connection's fd and arm it non-blocking so the worker's
// multiplexer, not the Go runtime netpoller, owns it. net.Pipe doesn't
// expose a real, pollable fd, so a loopback TCP listener stands in for
// it here, the same role aio_test.go's echoServer plays for gaio.
func testDupFD(t *testing.T, conn net.Conn) int {
	t.Helper()
	sc, ok := conn.(syscall.Conn)
	require.True(t, ok)
	raw, err := sc.SyscallConn()
	require.NoError(t, err)

	var dupfd int
	ctlErr := raw.Control(func(fd uintptr) {
		dupfd, err = unix.Dup(int(fd))
	})
	require.NoError(t, ctlErr)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(dupfd, true))
	return dupfd
}

// TestWorkerEchoEndToEnd drives a real Worker through the full reactor
// path: accept-nudge handoff, multiplexer registration, coroutine
// resumption, and a real HTTP/1.1 response over a loopback socket.
func TestWorkerEchoEndToEnd(t *testing.T) {
	cfg := ServerConfig{
		KeepAliveTimeout: 2 * time.Second,
		Expires:          time.Hour,
		MaxFD:            1024,
		ThreadCount:      1,
	}
	srv := NewServer(cfg, zerolog.Nop(), connio.NewProcessor(nil))
	require.NoError(t, srv.ThreadInit())
	defer srv.ThreadShutdown()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fd := testDupFD(t, conn)
		conn.Close()
		require.NoError(t, srv.AddClient(0, fd))
		close(accepted)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	<-accepted

	_, err = client.Write([]byte("GET / HTTP/1.1\r\nHost: example\r\n\r\n"))
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(3 * time.Second))
	reader := bufio.NewReader(client)
	tp := textproto.NewReader(reader)

	statusLine, err := tp.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "HTTP/1.1 200 OK", statusLine)

	header, err := tp.ReadMIMEHeader()
	require.NoError(t, err)
	require.Equal(t, "keep-alive", header.Get("Connection"))

	body := make([]byte, 3)
	_, err = reader.Read(body)
	require.NoError(t, err)
	require.Equal(t, "ok\n", string(body))
}

// TestWorkerIdleConnectionReaped verifies a connection that never sends
// a request is destroyed once its death-queue entry expires (spec.md §8
// scenario 1), without the test itself ever touching the death queue.
func TestWorkerIdleConnectionReaped(t *testing.T) {
	cfg := ServerConfig{
		KeepAliveTimeout: 1 * time.Second,
		Expires:          time.Hour,
		MaxFD:            1024,
		ThreadCount:      1,
	}
	srv := NewServer(cfg, zerolog.Nop(), connio.NewProcessor(nil))
	require.NoError(t, srv.ThreadInit())
	defer srv.ThreadShutdown()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fd := testDupFD(t, conn)
		conn.Close()
		require.NoError(t, srv.AddClient(0, fd))
		close(accepted)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	<-accepted

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1)
	_, err = client.Read(buf)
	require.Error(t, err) // peer (reactor) closed the idle connection
}
