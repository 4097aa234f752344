package reactor

// ConnFlag is a bitset over per-connection state, mirrored from spec.md
// §3. Flags not in carryFlagsMask or reactorBookkeepingMask are reset at
// the start of every coroutine iteration (see connection.go's
// resetIterationFlags).
type ConnFlag uint32

const (
	// FlagAlive marks a slot as occupied by a live connection. A
	// connection is present in the death queue iff FlagAlive is set
	// and Conn.coro != nil.
	FlagAlive ConnFlag = 1 << iota
	// FlagKeepAlive means the peer/connection negotiated HTTP
	// keep-alive; it controls the death-queue refresh delta
	// (deathqueue.go moveToTail).
	FlagKeepAlive
	// FlagShouldResumeCoro is set when a connection is activated and
	// makes the worker resume its coroutine on the next event. resume.go
	// clears it when the coroutine yields WantRead or WantWrite while
	// FlagMustRead is not set; a MayResume yield leaves it set.
	FlagShouldResumeCoro
	// FlagMustRead forces the next multiplexer wait to be for
	// readability regardless of the yield outcome (set by
	// process_request via the request context, per spec.md §6).
	FlagMustRead
	// FlagWriteEvents mirrors which side of the multiplexer interest is
	// currently installed: set means "next desired interest is read
	// side", cleared means "write side". See resume.go's table.
	FlagWriteEvents
	// FlagAllowProxyReqs is derived from server config (proxy_protocol)
	// at the start of every iteration.
	FlagAllowProxyReqs
	// FlagAllowCORS is derived from server config (allow_cors) at the
	// start of every iteration, and can also be carried over from a
	// prior iteration (see carryFlagsMask).
	FlagAllowCORS
	// FlagProxied is set by process_request once a PROXY protocol
	// header has been consumed on this connection; it survives across
	// iterations so it is not re-parsed on every pipelined request.
	FlagProxied
)

// carryFlagsMask is the set of flags that survive from one coroutine
// iteration to the next, per spec.md §3 and §8 invariant 6. Apart from
// reactorBookkeepingMask, every other flag is cleared or recomputed from
// server config at the top of each iteration.
const carryFlagsMask = FlagProxied | FlagAllowCORS

// reactorBookkeepingMask is flag state the resume protocol (resume.go)
// owns — which multiplexer interest is installed and whether the
// coroutine is expecting a resume — as opposed to state derived from
// request processing. connection.go's resetIterationFlags must preserve
// it across iterations; it is never part of the request-carried set.
const reactorBookkeepingMask = FlagShouldResumeCoro | FlagWriteEvents

// YieldOutcome is the integer-comparable result of resuming a
// connection's coroutine, per spec.md §4.2.
type YieldOutcome int

const (
	// Abort and any outcome below MayResume means the connection must
	// be destroyed.
	Abort YieldOutcome = -1
	// MayResume means the coroutine yielded cleanly and is willing to
	// be resumed again when the worker next has it scheduled.
	MayResume YieldOutcome = 0
	// WantRead/WantWrite are positive outcomes that install a specific
	// multiplexer interest; unless FlagMustRead is set they also clear
	// FlagShouldResumeCoro, so the worker does not resume the coroutine
	// again (see resume.go).
	WantRead  YieldOutcome = 1
	WantWrite YieldOutcome = 2
)
