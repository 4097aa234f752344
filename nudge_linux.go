//go:build linux

package reactor

import "golang.org/x/sys/unix"

// newNudge creates an eventfd in semaphore mode, non-blocking and
// close-on-exec — the preferred nudge channel per spec.md §4.7. Falls
// back to a self-pipe if eventfd creation fails (e.g. EMFILE).
func newNudge() (*nudge, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC|unix.EFD_SEMAPHORE)
	if err == nil {
		return &nudge{readFD: fd, writeFD: fd, isPipe: false}, nil
	}
	return newPipeNudge()
}
