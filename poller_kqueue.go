//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"golang.org/x/sys/unix"
)

// kqueuePoller implements poller on BSD-family kernels via kqueue,
// mirroring gaio's multi-platform build-tag split between an epoll and
// a kqueue backend for the same watcher abstraction.
type kqueuePoller struct {
	kq         int
	nudgeFD    int
	nudgeIdent int
}

func openPoll() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	_, err = unix.Kevent(kq, nil, nil, nil) // no-op, fail fast if kq is unusable
	if err != nil {
		unix.Close(kq)
		return nil, err
	}
	return &kqueuePoller{kq: kq, nudgeIdent: pollerNudgeIdent}, nil
}

func (p *kqueuePoller) changeInterest(fd int, write bool, edgeTriggered bool) []unix.Kevent_t {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	clearFlags := uint16(unix.EV_ADD | unix.EV_DELETE)
	if edgeTriggered {
		flags |= unix.EV_CLEAR
	}
	if write {
		return []unix.Kevent_t{
			{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags},
			{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: clearFlags & ^uint16(unix.EV_ADD) | unix.EV_DELETE},
		}
	}
	return []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
}

func (p *kqueuePoller) Watch(fd int, write bool, edgeTriggered bool) error {
	changes := p.changeInterest(fd, write, edgeTriggered)
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return ignoreBenignKeventErr(err)
}

func (p *kqueuePoller) Modify(fd int, write bool, edgeTriggered bool) error {
	return p.Watch(fd, write, edgeTriggered)
}

func (p *kqueuePoller) Unwatch(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return ignoreBenignKeventErr(err)
}

func ignoreBenignKeventErr(err error) error {
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return err
}

func (p *kqueuePoller) WatchNudge(fd int) error {
	p.nudgeFD = fd
	changes := []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE}}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) NudgeIdent() int { return p.nudgeIdent }

func (p *kqueuePoller) Wait(dst []pollEvent, timeoutMS int) ([]pollEvent, error) {
	n := maxEventsFromDst(dst)
	raw := make([]unix.Kevent_t, n)

	var ts *unix.Timespec
	if timeoutMS >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMS) * 1e6)
		ts = &t
	}

	count, err := unix.Kevent(p.kq, nil, raw, ts)
	if err != nil {
		return dst, err
	}
	for i := 0; i < count; i++ {
		fd := int(raw[i].Ident)
		var flags pollFlag
		switch raw[i].Filter {
		case unix.EVFILT_READ:
			flags |= pollRead
		case unix.EVFILT_WRITE:
			flags |= pollWrite
		}
		if raw[i].Flags&unix.EV_EOF != 0 {
			flags |= pollHangup
		}
		if raw[i].Flags&unix.EV_ERROR != 0 {
			flags |= pollError
		}
		ident := fd
		if fd == p.nudgeFD {
			ident = p.nudgeIdent
		}
		dst = append(dst, pollEvent{Ident: ident, Flags: flags})
	}
	return dst, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}
