package reactor

// pollEvent is one readiness notification, applying to the fd in the
// connection table that registered with Ident.
type pollEvent struct {
	Ident int
	Flags pollFlag
}

// pollFlag is a bitset over readiness conditions, deliberately distinct
// from ConnFlag so the multiplexer's vocabulary can't be confused with
// connection state.
type pollFlag uint32

const (
	pollRead pollFlag = 1 << iota
	pollWrite
	pollHangup
	pollError
)

// pollerNudgeIdent is the Ident value reported for nudge-channel
// readiness, distinguishing it from every real fd (which are always
// >= 0), per spec.md §4.4 "the event's user-data pointer is null".
const pollerNudgeIdent = -1

// maxEventsFromDst sizes a single Wait's raw-event buffer from how much
// headroom dst already has, falling back to a generous default.
func maxEventsFromDst(dst []pollEvent) int {
	n := cap(dst) - len(dst)
	if n <= 0 {
		n = 1024
	}
	return n
}

// maxEvents is min(maxFD, 1024), per spec.md §4.5.
func maxEvents(maxFD int) int {
	if maxFD > 1024 {
		return 1024
	}
	if maxFD <= 0 {
		return 1
	}
	return maxFD
}

// poller is the readiness-notification facility a Worker waits on: epoll
// on Linux, kqueue on BSD/Darwin (spec.md §2 item 6, §9 "Implementers
// should pass it as an explicit dependency"). nudgeIdent is a
// sentinel/null identity: implementations register the nudge fd with it
// and must report it distinguishably from every real connection fd
// (spec.md §4.4 "the event's user-data pointer is null").
type poller interface {
	// Watch registers fd for the given interest. edgeTriggered matters
	// only for read interest, per spec.md §4.2's table (write interest
	// is always level-triggered).
	Watch(fd int, write bool, edgeTriggered bool) error
	// Modify changes fd's registered interest.
	Modify(fd int, write bool, edgeTriggered bool) error
	// Unwatch deregisters fd. Safe to call after the fd is already
	// closed; implementations must not error in that case since the
	// kernel may have already dropped the registration.
	Unwatch(fd int) error
	// WatchNudge registers the nudge channel's read end for read
	// interest, reported back with Ident == NudgeIdent().
	WatchNudge(fd int) error
	// NudgeIdent is the Ident value events carry when they are for the
	// nudge channel rather than a connection.
	NudgeIdent() int
	// Wait blocks for up to timeoutMS milliseconds (-1 = forever) and
	// appends ready events into dst, returning the extended slice.
	Wait(dst []pollEvent, timeoutMS int) ([]pollEvent, error)
	// Close releases the underlying poll fd, causing any blocked Wait
	// to return an error (spec.md §4.7 shutdown path).
	Close() error
}
