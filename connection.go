package reactor

import (
	"github.com/emberhttp/reactor/coroutine"
)

// sentinel is the "no link" / "this is the head" value for death-queue
// indices, per spec.md §3.
const sentinel = -1

// Conn is one slot in the process-wide connection Table, indexed
// implicitly by its file descriptor number. Conn is touched only by its
// owning Worker once activated (spec.md §5 "ownership partitioning");
// the acceptor touches it only before the SPSC push that publishes it.
type Conn struct {
	fd     int
	thread *Worker // non-owning back-reference

	coro *coroutine.Coroutine // nil iff inactive

	flags      ConnFlag
	timeToDie  int64 // tick at which the reaper destroys this connection
	prev, next int   // death-queue links, table indices; sentinel if unlinked

	// respBuf is the response buffer whose storage must span every
	// request iteration of this connection's coroutine (spec.md §4.1).
	// It is allocated once per activation and reset, not reallocated,
	// between iterations.
	respBuf []byte

	// readBuf holds bytes read from the socket that process_request has
	// not yet consumed, including any pipelined next-request bytes
	// (spec.md §8 scenario 6).
	readBuf []byte

	// cursor is the continuation cursor process_request returned on the
	// previous iteration: an offset into readBuf where the next
	// pipelined request starts, or -1 if readBuf held exactly one
	// request and a fresh read is needed before the next iteration
	// parses anything (spec.md §6, §8 scenario 6).
	cursor int

	// proxy carries PROXY-protocol-derived addressing data once parsed,
	// valid for the lifetime of the connection.
	proxySrcAddr string
	proxyDstAddr string
}

func (c *Conn) isAlive() bool   { return c.flags&FlagAlive != 0 }
func (c *Conn) inDeathQ() bool  { return c.isAlive() && c.coro != nil }
func (c *Conn) set(f ConnFlag)  { c.flags |= f }
func (c *Conn) clear(f ConnFlag) { c.flags &^= f }
func (c *Conn) has(f ConnFlag) bool { return c.flags&f != 0 }

// resetIterationFlags derives the per-iteration flag set from server
// config, carrying over only the flags spec.md §3/§8 names (PROXIED,
// ALLOW_CORS), per spec.md §4.1 "Initial flags for each iteration".
// reactorBookkeepingMask flags (SHOULD_RESUME_CORO, WRITE_EVENTS) are
// the resume protocol's own state, not request-derived, and must
// survive this reset untouched.
func (c *Conn) resetIterationFlags(cfg ServerConfig) {
	preserved := c.flags & (carryFlagsMask | reactorBookkeepingMask)
	c.flags = preserved | FlagAlive
	if cfg.ProxyProtocol {
		c.set(FlagAllowProxyReqs)
	}
	if cfg.AllowCORS {
		c.set(FlagAllowCORS)
	}
}

// Table is the process-wide, contiguous connection array indexed by fd
// number (spec.md §3 "Connection table"). It is owned by the Server and
// borrowed by whichever Worker currently owns a given slot.
type Table struct {
	slots []Conn
}

// NewTable allocates a table sized to hold fds in [0, maxFD).
func NewTable(maxFD int) *Table {
	t := &Table{slots: make([]Conn, maxFD)}
	for i := range t.slots {
		t.slots[i].fd = i
		t.slots[i].prev = sentinel
		t.slots[i].next = sentinel
	}
	return t
}

// At returns the slot for fd. The caller must already own fd (i.e. be
// its assigned worker, or be the acceptor prior to SPSC publish).
func (t *Table) At(fd int) *Conn {
	return &t.slots[fd]
}

// Len reports the table's fd capacity.
func (t *Table) Len() int { return len(t.slots) }
