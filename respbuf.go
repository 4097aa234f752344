package reactor

import "sync/atomic"

// respBufPool bounds total response-buffer memory across a server's
// connections, giving "allocating the response buffer fails" (spec.md
// §4.1) a real, testable meaning instead of relying on Go's make()
// panicking under OOM. Budget is in bytes; acquire/release are the only
// operations, kept lock-free via atomic add since many workers share
// one pool concurrently.
type respBufPool struct {
	budget int64 // 0 means unbounded
	inUse  atomic.Int64
}

func newRespBufPool(budgetBytes int64) *respBufPool {
	return &respBufPool{budget: budgetBytes}
}

// acquire reserves size bytes and returns a ready-to-use buffer, or
// ok=false if doing so would exceed the pool's budget.
func (p *respBufPool) acquire(size int) (buf []byte, ok bool) {
	if p.budget <= 0 {
		return make([]byte, 0, size), true
	}
	n := p.inUse.Add(int64(size))
	if n > p.budget {
		p.inUse.Add(-int64(size))
		return nil, false
	}
	return make([]byte, 0, size), true
}

// release returns cap(buf) bytes to the budget. Safe to call with a nil
// or zero-capacity buf.
func (p *respBufPool) release(buf []byte) {
	if p.budget <= 0 || cap(buf) == 0 {
		return
	}
	p.inUse.Add(-int64(cap(buf)))
}
