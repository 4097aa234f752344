package reactor

import "time"

// dateCache holds the worker-local "Date" and "Expires" header strings,
// refreshed at most once per second (spec.md §4.6). It is read only by
// the coroutine driving the current iteration, via the request context,
// so no locking is required: each worker owns exactly one dateCache and
// only ever touches it from its own event-loop goroutine.
type dateCache struct {
	epoch   int64
	date    string
	expires string
	ttl     time.Duration
}

func newDateCache(expiresTTL time.Duration) *dateCache {
	d := &dateCache{ttl: expiresTTL}
	d.update()
	return d
}

// update refreshes both cached strings if the wall-clock second has
// advanced since the last call; otherwise it is a no-op.
func (d *dateCache) update() {
	now := time.Now()
	sec := now.Unix()
	if sec == d.epoch && d.date != "" {
		return
	}
	d.epoch = sec
	d.date = now.UTC().Format(http1Date)
	d.expires = now.Add(d.ttl).UTC().Format(http1Date)
}

// http1Date is RFC 7231's fixed-length preferred date format.
const http1Date = "Mon, 02 Jan 2006 15:04:05 GMT"

// Date returns the cached "Date" header value.
func (d *dateCache) Date() string { return d.date }

// Expires returns the cached "Expires" header value.
func (d *dateCache) Expires() string { return d.expires }
