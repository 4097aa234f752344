package reactor

import "github.com/emberhttp/reactor/coroutine"

// resumeIfNeeded is the resume protocol of spec.md §4.2. It returns
// true if conn survived (and its multiplexer interest, if changed, was
// already applied), or false if conn was destroyed and the caller must
// not touch it further.
func (w *Worker) resumeIfNeeded(conn *Conn) bool {
	if !conn.has(FlagShouldResumeCoro) {
		return true
	}

	outcome := coroOutcome(conn.coro.Resume())
	if outcome < MayResume {
		w.destroyConn(conn)
		return false
	}

	var wantWrite bool
	if conn.has(FlagMustRead) {
		wantWrite = false
	} else if outcome == MayResume {
		wantWrite = true // expecting to keep writing soon
	} else {
		conn.clear(FlagShouldResumeCoro)
		wantWrite = outcome == WantWrite
	}

	// FlagWriteEvents: set means "next desired interest is read side"
	// per spec.md's table (the naming inversion tracks which side is
	// *currently installed*, mapping write_events=1 to read-interest).
	// wantRead is the mirror of wantWrite for that same table.
	wantRead := !wantWrite
	currentlyWantsRead := conn.has(FlagWriteEvents)
	if wantRead == currentlyWantsRead {
		return true // already matches; no multiplexer mutation needed
	}

	// Read-interest is always installed edge-triggered; write-interest
	// is level-triggered (spec.md §4.2's table), so edgeTriggered is
	// simply "is this the read side".
	edgeTriggered := wantRead
	if err := w.poll.Modify(conn.fd, wantWrite, edgeTriggered); err != nil {
		// Interest-modify failure is logged but does not by itself
		// destroy the connection (spec.md §7): it will be recycled by
		// timeout or a later event.
		logRecoverable(w.log, w.id, "modify interest failed", err)
		return true
	}
	if wantRead {
		conn.set(FlagWriteEvents)
	} else {
		conn.clear(FlagWriteEvents)
	}
	return true
}

// coroOutcome adapts coroutine.Outcome (the primitive library's opaque
// int) to YieldOutcome (the reactor's typed vocabulary for it). Kept as
// a named conversion point in case the two ever need independent
// encodings.
func coroOutcome(o coroutine.Outcome) YieldOutcome { return YieldOutcome(o) }
