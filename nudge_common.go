package reactor

import "golang.org/x/sys/unix"

// newPipeNudge creates a non-blocking, close-on-exec self-pipe nudge
// channel (spec.md §4.7). Used directly on platforms without eventfd,
// and as nudge_linux.go's fallback if Eventfd creation fails.
func newPipeNudge() (*nudge, error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return nil, err
	}
	readFD, writeFD := fds[0], fds[1]
	for _, fd := range []int{readFD, writeFD} {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(readFD)
			unix.Close(writeFD)
			return nil, err
		}
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
			unix.Close(readFD)
			unix.Close(writeFD)
			return nil, err
		}
	}
	return &nudge{readFD: readFD, writeFD: writeFD, isPipe: true}, nil
}
