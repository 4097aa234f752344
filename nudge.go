package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// nudge is the wake-up primitive the acceptor uses to rouse a worker
// after pushing fds onto its fdQueue (spec.md §2 item 3, §4.4). readFD
// is registered with the poller; writeFD is written to by the acceptor.
// On Linux this is a single eventfd in semaphore mode; elsewhere it
// falls back to a non-blocking, close-on-exec self-pipe (spec.md §4.7).
type nudge struct {
	readFD  int
	writeFD int
	isPipe  bool
}

// write sends one unit to the nudge channel. Errors are recoverable
// (spec.md §7): the caller logs and continues, since a failed nudge at
// worst delays the worker noticing pending fds until its next
// multiplexer timeout.
func (n *nudge) write() error {
	if n.isPipe {
		_, err := unix.Write(n.writeFD, []byte{1})
		if err == unix.EAGAIN {
			// Self-pipe already has a byte pending; the worker hasn't
			// drained it yet. Benign: it will still wake up.
			return nil
		}
		return err
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 1)
	_, err := unix.Write(n.writeFD, buf)
	return err
}

// drain consumes pending wake-ups: every pending byte of a self-pipe, or
// one unit of the eventfd (semaphore mode), which stays readable while
// more units remain, so the next Wait reports it again.
// Errors here are recoverable and logged; a failed drain just means the
// worker will spin once more on EPOLLIN before truly going idle.
func (n *nudge) drain() error {
	buf := make([]byte, 8)
	for {
		_, err := unix.Read(n.readFD, buf)
		if err == unix.EAGAIN {
			return nil
		}
		if err != nil {
			return err
		}
		if n.isPipe {
			continue // self-pipe: keep draining until EAGAIN
		}
		return nil // eventfd in semaphore mode: a read consumes one unit
	}
}

func (n *nudge) close() error {
	err1 := unix.Close(n.readFD)
	var err2 error
	if n.writeFD != n.readFD {
		err2 = unix.Close(n.writeFD)
	}
	if err1 != nil {
		return err1
	}
	return err2
}
