// Package coroutine implements the coroutine primitive library spec.md
// §6 treats as an external collaborator: create/resume/yield/defer,
// generation-scoped deferred cleanups, and free.
//
// spec.md §9 ("Coroutines as connection drivers") explicitly allows a
// non-stackful substitute as long as the observable contract — suspend
// anywhere, resume from that point, scoped deferred cleanups — holds.
// This implementation parks one goroutine per connection on a pair of
// unbuffered handoff channels, strictly ping-ponged with the resumer:
// Resume sends on resumeCh and blocks on yieldCh, the coroutine body
// blocks on resumeCh and sends on yieldCh from inside Yield. At most one
// side runs at a time, which is exactly the "one stack, one active
// control flow" contract a stackful coroutine provides. The shape is
// grounded on dispatchrun/dispatch-go's Coroutine.Run, which gates a
// suspendable function on Send/Next/Recv the same way.
package coroutine

import "sync"

// Outcome is the integer-comparable value a coroutine yields, passed
// through unchanged to resumers. The reactor package interprets it
// against YieldOutcome; this package is agnostic to its meaning.
type Outcome int

// EntryFunc is the body of a coroutine. It runs in its own goroutine
// and must call Yield (via the Coroutine handed to it, through a
// closure) at every suspension point. Returning from EntryFunc is a
// programmer error for connection-driving coroutines (spec.md §4.1:
// "Runs forever; never returns"); Free does not wait for it to return,
// it cancels it via the done channel and abandons the goroutine, which
// is expected to observe Closed() and unwind via its deferred cleanups.
type EntryFunc func(co *Coroutine)

type cleanup struct {
	generation int
	fn         func()
}

// Coroutine is a suspendable per-connection execution context.
type Coroutine struct {
	resumeCh chan struct{}
	yieldCh  chan Outcome
	done     chan struct{}
	doneOnce sync.Once

	mu         sync.Mutex
	generation int
	cleanups   []cleanup
	closed     bool
}

// Create spawns a new coroutine running fn, and returns it without
// resuming it. The caller must call Resume to run it the first time.
func Create(fn EntryFunc) *Coroutine {
	co := &Coroutine{
		resumeCh: make(chan struct{}),
		yieldCh:  make(chan Outcome),
		done:     make(chan struct{}),
	}
	go func() {
		// Wait for the first Resume before running any user code, so
		// Create has no observable side effects until explicitly
		// resumed (mirrors a stackful coroutine's lazy first-switch).
		select {
		case <-co.resumeCh:
		case <-co.done:
			return
		}
		fn(co)
		// EntryFunc returned: treat it as an implicit final yield so a
		// blocked Resume never hangs, then let the goroutine exit.
		select {
		case co.yieldCh <- Outcome(-1):
		case <-co.done:
		}
	}()
	return co
}

// Resume runs the coroutine until its next Yield (or return) and
// reports the yielded outcome. Resume must only be called from the
// owning worker's event-loop goroutine, never concurrently.
func (co *Coroutine) Resume() Outcome {
	select {
	case co.resumeCh <- struct{}{}:
	case <-co.done:
		return Outcome(-1)
	}
	select {
	case o := <-co.yieldCh:
		return o
	case <-co.done:
		return Outcome(-1)
	}
}

// Yield suspends the calling coroutine, handing outcome to whoever
// called Resume, and blocks until the next Resume. Must only be called
// from inside the coroutine's own goroutine.
func (co *Coroutine) Yield(outcome Outcome) {
	select {
	case co.yieldCh <- outcome:
	case <-co.done:
		// Free() has closed done; return at once so the body can
		// observe Closed() and unwind. Free runs the deferred cleanups.
		<-co.done
		return
	}
	select {
	case <-co.resumeCh:
	case <-co.done:
		return
	}
}

// Generation returns a token identifying "everything deferred so far".
// Combined with RunDeferred, this delimits per-request scoped resources
// (spec.md §4.1 step 2/4): snapshot the generation before calling
// process_request, then run only cleanups registered at or above it.
func (co *Coroutine) Generation() int {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.generation
}

// Defer registers fn to run when RunDeferred is next called with a
// generation at or below the one in effect when Defer was called, or
// when Free tears down the coroutine. fn is invoked with no arguments;
// callers close over whatever state they need.
func (co *Coroutine) Defer(fn func()) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.cleanups = append(co.cleanups, cleanup{generation: co.generation, fn: fn})
}

// RunDeferred runs, in LIFO order, every cleanup registered at or above
// generation, then bumps the generation counter so a subsequent Defer
// call starts a fresh scope.
func (co *Coroutine) RunDeferred(generation int) {
	co.mu.Lock()
	var toRun []cleanup
	kept := co.cleanups[:0]
	for _, c := range co.cleanups {
		if c.generation >= generation {
			toRun = append(toRun, c)
		} else {
			kept = append(kept, c)
		}
	}
	co.cleanups = kept
	co.generation++
	co.mu.Unlock()

	for i := len(toRun) - 1; i >= 0; i-- {
		toRun[i].fn()
	}
}

// Closed reports whether Free has been called. A coroutine body running
// inside EntryFunc should check this after any blocking operation that
// might race a Free from the owning worker and unwind promptly if true.
func (co *Coroutine) Closed() bool {
	select {
	case <-co.done:
		return true
	default:
		return false
	}
}

// Free runs every remaining deferred cleanup (regardless of
// generation) and releases the coroutine's goroutine. Safe to call
// more than once.
func (co *Coroutine) Free() {
	co.doneOnce.Do(func() {
		close(co.done)
	})
	co.RunDeferred(0)
}
