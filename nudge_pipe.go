//go:build !linux

package reactor

// newNudge falls back directly to a self-pipe on platforms without
// eventfd (spec.md §4.7 "else a non-blocking close-on-exec pipe").
func newNudge() (*nudge, error) {
	return newPipeNudge()
}
