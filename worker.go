package reactor

import (
	"github.com/emberhttp/reactor/connio"
	"github.com/emberhttp/reactor/coroutine"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Worker is one OS thread running one event loop, owning a disjoint set
// of active connections (spec.md §2 item 6, §5 "Thread model").
type Worker struct {
	id        int
	server    *Server
	poll      poller
	nudgeChan *nudge
	fdq       *fdQueue
	dq        *deathQueue
	dates     *dateCache
	log       zerolog.Logger
	exited    chan struct{}
}

// newWorker allocates a worker's poller, nudge channel, and SPSC queue
// (spec.md §4.7 "Creation"). All failures here are fatal for
// ThreadInit's caller.
func newWorker(id int, s *Server) (*Worker, error) {
	p, err := openPoll()
	if err != nil {
		return nil, err
	}
	n, err := newNudge()
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := p.WatchNudge(n.readFD); err != nil {
		p.Close()
		n.close()
		return nil, err
	}

	w := &Worker{
		id:     id,
		server: s,
		poll:   p,
		nudgeChan: n,
		fdq:    newFDQueue(s.cfg.MaxFD),
		dates:  newDateCache(s.cfg.Expires),
		log:    s.log.With().Int("worker", id).Logger(),
		exited: make(chan struct{}),
	}
	return w, nil
}

func (w *Worker) closeMultiplexer() {
	w.poll.Close()
}

// run is the worker's OS-thread entry point: initialize the death
// queue, rendezvous on the startup barrier, then drive the event loop
// until shutdown (spec.md §4.7).
func (w *Worker) run() {
	w.dq = newDeathQueue(w.server.table, int64(w.server.cfg.KeepAliveTimeout.Seconds()))
	w.server.barrier.wait()
	w.eventLoop()
}

// eventLoop is the top-level driver of spec.md §4.5.
func (w *Worker) eventLoop() {
	maxEv := maxEvents(w.server.cfg.MaxFD)
	events := make([]pollEvent, 0, maxEv)

	for {
		var err error
		events, err = w.poll.Wait(events[:0], w.dq.multiplexerTimeout())
		if err != nil {
			if err == unix.EBADF || err == unix.EINVAL {
				break // shutdown: multiplexer fd was closed
			}
			logRecoverable(w.log, w.id, "poller wait failed", err)
			continue
		}

		if len(events) == 0 {
			w.dq.tick(w.destroyConn)
			continue
		}

		w.dates.update()
		for _, ev := range events {
			if ev.Ident == w.poll.NudgeIdent() {
				w.acceptNudge()
				continue
			}
			conn := w.server.table.At(ev.Ident)
			if ev.Flags&(pollHangup|pollError) != 0 {
				w.destroyConn(conn)
				continue
			}
			if w.resumeIfNeeded(conn) {
				w.dq.moveToTail(conn)
			}
		}
	}

	w.shutdown()
}

// shutdown implements the worker side of spec.md §4.7: rendezvous on
// the shared barrier, then destroy every remaining connection.
func (w *Worker) shutdown() {
	w.server.barrier.wait()
	for fd := 0; fd < w.server.table.Len(); fd++ {
		conn := w.server.table.At(fd)
		if conn.thread == w && conn.isAlive() {
			w.destroyConn(conn)
		}
	}
	close(w.exited)
}

// acceptNudge implements spec.md §4.4: drain the nudge channel, then
// pop every pending fd, install it, spawn its coroutine, and give it an
// immediate first resume.
func (w *Worker) acceptNudge() {
	if err := w.nudgeChan.drain(); err != nil {
		logRecoverable(w.log, w.id, "nudge drain failed", err)
	}

	for {
		fd, ok := w.fdq.pop()
		if !ok {
			return // benign: nudge with no (more) pending fds
		}
		w.activate(fd)
	}
}

// activate registers a freshly accepted fd and starts driving it.
// Registration failures are logged and the fd is closed here: this
// resolves spec.md §9's open question by making close-on-
// registration-failure the core's explicit contract with the acceptor.
func (w *Worker) activate(fd int) {
	conn := w.server.table.At(fd)
	conn.flags = 0
	conn.prev = sentinel
	conn.next = sentinel
	buf, ok := w.server.bufs.acquire(w.server.cfg.RespBufInitialSize)
	if !ok {
		logRecoverable(w.log, w.id, "response buffer budget exceeded", nil)
	}
	conn.respBuf = buf
	conn.readBuf = conn.readBuf[:0]
	conn.cursor = -1

	if err := w.poll.Watch(fd, false, true); err != nil {
		logRecoverable(w.log, w.id, "register new connection failed", err)
		unix.Close(fd)
		return
	}

	conn.set(FlagAlive | FlagWriteEvents | FlagShouldResumeCoro)
	conn.coro = coroutine.Create(func(co *coroutine.Coroutine) {
		w.coroutineBody(conn, co)
	})
	w.dq.insert(conn)

	if w.resumeIfNeeded(conn) {
		w.dq.moveToTail(conn)
	}
}

// coroutineBody is the per-connection driver of spec.md §4.1: it runs
// forever, one request iteration at a time, yielding MayResume at the
// end of every iteration so the event loop decides when to resume it.
// Reads and writes against conn.fd happen here (not inside connio,
// which is given bytes already read): each is a non-blocking syscall
// that yields via co.Yield on EAGAIN and resumes exactly where it left
// off, per spec.md §5 "I/O primitives ... must be non-blocking and
// yield on EAGAIN".
func (w *Worker) coroutineBody(conn *Conn, co *coroutine.Coroutine) {
	for {
		if co.Closed() {
			return
		}

		conn.resetIterationFlags(w.server.cfg)

		ctx := &connio.Context{
			Fd:             conn.fd,
			ResponseBuf:    conn.respBuf[:0],
			AllowProxyReqs: conn.has(FlagAllowProxyReqs),
			AllowCORS:      conn.has(FlagAllowCORS),
			Proxied:        conn.has(FlagProxied),
			ProxySrc:       conn.proxySrcAddr,
			ProxyDst:       conn.proxyDstAddr,
			DateHeader:     w.dates.Date(),
			ExpiresHeader:  w.dates.Expires(),
		}

		gen := co.Generation()

		if ctx.ResponseBuf == nil {
			// respBufPool.acquire failed at activation (budget
			// exceeded): spec.md §4.1 "If allocating the response
			// buffer fails, the coroutine immediately yields ABORT".
			co.RunDeferred(gen)
			co.Yield(coroutine.Outcome(Abort))
			continue
		}

		next, ok := w.readUntilParsed(conn, co, ctx)
		if co.Closed() {
			// A hangup/error event destroyed this connection (and
			// freed this coroutine) while we were parked in Yield;
			// destroyConn already owns conn from here, touch nothing.
			return
		}
		conn.clear(FlagMustRead)
		if !ok {
			co.RunDeferred(gen)
			co.Yield(coroutine.Outcome(Abort))
			continue
		}

		co.RunDeferred(gen)

		conn.proxySrcAddr = ctx.ProxySrc
		conn.proxyDstAddr = ctx.ProxyDst
		if ctx.Proxied {
			conn.set(FlagProxied)
		}
		if ctx.AllowCORS {
			conn.set(FlagAllowCORS)
		}
		if ctx.KeepAlive {
			conn.set(FlagKeepAlive)
		} else {
			conn.clear(FlagKeepAlive)
		}

		respBuf := ctx.ResponseBuf
		wrote := w.writeResponse(conn, co, respBuf)
		if co.Closed() {
			return
		}
		conn.respBuf = respBuf[:0]
		if !wrote {
			co.Yield(coroutine.Outcome(Abort))
			continue
		}

		if next >= 0 {
			// Pipelined bytes remain in readBuf; parse resumes there
			// next iteration with no further read (spec.md §8 scenario
			// 6).
			conn.cursor = next
		} else {
			conn.readBuf = conn.readBuf[:0]
			conn.cursor = -1
			if ctx.MustRead {
				conn.set(FlagMustRead)
			}
		}

		co.Yield(coroutine.Outcome(MayResume))
	}
}

// readUntilParsed feeds conn's socket into conn.readBuf until
// process_request (connio.Processor.Process) either succeeds or fails
// for a reason other than "needs more bytes". It yields WANT_READ
// (via MayResume with MUST_READ set, per spec.md §4.2) on EAGAIN and
// resumes the read from exactly where it left off.
func (w *Worker) readUntilParsed(conn *Conn, co *coroutine.Coroutine, ctx *connio.Context) (next int, ok bool) {
	var tmp [4096]byte
	for {
		n, err := w.server.proc.Process(ctx, conn.readBuf, conn.cursor)
		if err == nil {
			return n, true
		}
		if err != connio.ErrIncompleteRequest {
			logConnScoped(w.log, w.id, conn.fd, "process_request failed", err)
			return -1, false
		}

		rn, rerr := unix.Read(conn.fd, tmp[:])
		switch {
		case rerr == nil && rn > 0:
			conn.readBuf = append(conn.readBuf, tmp[:rn]...)
		case rerr == nil && rn == 0:
			return -1, false // peer closed mid-request
		case rerr == unix.EAGAIN:
			conn.set(FlagMustRead)
			co.Yield(coroutine.Outcome(MayResume))
			if co.Closed() {
				return -1, false
			}
		default:
			return -1, false
		}
	}
}

// writeResponse drains buf to conn.fd, yielding MayResume on EAGAIN
// (resume.go installs write interest for it and keeps the coroutine
// scheduled) and resuming the write from exactly where it left off.
// Returns false
// on a genuine write error or peer hangup; the caller treats that as
// connection-scoped per spec.md §7.
func (w *Worker) writeResponse(conn *Conn, co *coroutine.Coroutine, buf []byte) bool {
	for len(buf) > 0 {
		n, err := unix.Write(conn.fd, buf)
		switch {
		case err == nil && n > 0:
			buf = buf[n:]
		case err == unix.EAGAIN, err == nil && n == 0:
			co.Yield(coroutine.Outcome(MayResume))
			if co.Closed() {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// destroyConn implements spec.md §3 "Destruction": free the coroutine
// (running its deferred cleanups), clear IS_ALIVE, unlink from the
// death queue, and close the fd.
func (w *Worker) destroyConn(conn *Conn) {
	wasQueued := conn.inDeathQ()
	if conn.coro != nil {
		conn.coro.Free()
		conn.coro = nil
	}
	if wasQueued {
		w.dq.remove(conn)
	}
	conn.clear(FlagAlive)
	if err := w.poll.Unwatch(conn.fd); err != nil {
		logRecoverable(w.log, w.id, "unwatch failed", err)
	}
	if err := unix.Close(conn.fd); err != nil {
		logRecoverable(w.log, w.id, "close fd failed", err)
	}
	w.server.bufs.release(conn.respBuf)
	conn.respBuf = nil
	conn.readBuf = nil
}
