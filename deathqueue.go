package reactor

// deathQueue is the intrusive, circular doubly-linked list of live
// connections ordered by timeToDie, newest at the tail (spec.md §3,
// §4.3). Links are table indices, not pointers, because slots live in
// a stable, process-wide array (spec.md §9 "Intrusive list with index
// links, not pointers"). head is an out-of-band sentinel cell: head
// itself is never a connection and is never walked as one.
type deathQueue struct {
	table       *Table
	headPrev    int // tail: table index of the last entry, or sentinel
	headNext    int // table index of the first entry, or sentinel
	count       int
	currentTick int64
	timeout     int64 // keepAliveTimeout, in ticks
}

func newDeathQueue(table *Table, keepAliveTimeout int64) *deathQueue {
	return &deathQueue{
		table:    table,
		headPrev: sentinel,
		headNext: sentinel,
		timeout:  keepAliveTimeout,
	}
}

func (q *deathQueue) empty() bool { return q.count == 0 }

// insert appends conn at the tail. O(1).
func (q *deathQueue) insert(conn *Conn) {
	conn.prev = q.headPrev
	conn.next = sentinel
	if q.headPrev != sentinel {
		q.table.At(q.headPrev).next = conn.fd
	} else {
		q.headNext = conn.fd
	}
	q.headPrev = conn.fd
	q.count++
}

// remove unlinks conn and resets its links to sentinel. O(1).
//
// The sentinel reset is defensive (spec.md §9 FIXME): nothing in this
// implementation should traverse a removed connection's links, but
// clearing them turns any such bug into an immediate dead end instead
// of a silent walk through stale list state.
func (q *deathQueue) remove(conn *Conn) {
	if conn.prev != sentinel {
		q.table.At(conn.prev).next = conn.next
	} else {
		q.headNext = conn.next
	}
	if conn.next != sentinel {
		q.table.At(conn.next).prev = conn.prev
	} else {
		q.headPrev = conn.prev
	}
	conn.prev = sentinel
	conn.next = sentinel
	q.count--
}

// moveToTail refreshes conn's timeToDie and re-appends it at the tail,
// per spec.md §4.3. Called after every successful resume.
func (q *deathQueue) moveToTail(conn *Conn) {
	if conn.has(FlagKeepAlive) || conn.has(FlagShouldResumeCoro) {
		conn.timeToDie = q.currentTick + q.timeout
	} else {
		conn.timeToDie = q.currentTick
	}
	q.remove(conn)
	q.insert(conn)
}

// multiplexerTimeout returns the wait(2)/epoll_wait(2) timeout to use:
// 1000ms if the queue holds any connection, or -1 ("infinite") if empty
// (spec.md §4.3, §8 invariant 4).
func (q *deathQueue) multiplexerTimeout() int {
	if q.empty() {
		return -1
	}
	return 1000
}

// reaperResult reports what a single tick pass did, mainly for tests.
type reaperResult struct {
	Destroyed []int // fds destroyed this tick
	TickReset bool
}

// tick advances current_tick by one and destroys every connection whose
// timeToDie has elapsed, per spec.md §4.3. destroy is called once per
// expired connection while it is still linked, so destroy can itself
// call remove (via Worker.destroyConn) without double bookkeeping here.
func (q *deathQueue) tick(destroy func(conn *Conn)) reaperResult {
	q.currentTick++

	var result reaperResult
	for !q.empty() {
		conn := q.table.At(q.headNext)
		if conn.timeToDie > q.currentTick {
			break
		}
		result.Destroyed = append(result.Destroyed, conn.fd)
		destroy(conn)
	}

	if q.empty() {
		// Safe because the list is always sorted by timeToDie ascending
		// from head to tail (every refresh uses current_tick + a fixed
		// delta) — resetting only when no entries remain cannot make a
		// later insert's timeToDie collide with stale semantics.
		q.currentTick = 0
		result.TickReset = true
	}
	return result
}
