//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// epollPoller implements poller on Linux via golang.org/x/sys/unix,
// grounded on the same epoll wrapper style jacobsa-fuse and nabbar-golib
// use x/sys/unix for (EpollCreate1/EpollCtl/EpollWait).
type epollPoller struct {
	epfd       int
	nudgeFD    int
	nudgeIdent int
}

func openPoll() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: epfd, nudgeIdent: pollerNudgeIdent}, nil
}

func interestMask(write bool, edgeTriggered bool) uint32 {
	var ev uint32
	if write {
		ev = unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLERR
	} else {
		ev = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLERR
		if edgeTriggered {
			ev |= unix.EPOLLET
		}
	}
	return ev
}

func (p *epollPoller) Watch(fd int, write bool, edgeTriggered bool) error {
	ev := &unix.EpollEvent{Events: interestMask(write, edgeTriggered), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) Modify(fd int, write bool, edgeTriggered bool) error {
	ev := &unix.EpollEvent{Events: interestMask(write, edgeTriggered), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) Unwatch(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.EBADF || err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *epollPoller) WatchNudge(fd int) error {
	p.nudgeFD = fd
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) NudgeIdent() int { return p.nudgeIdent }

func (p *epollPoller) Wait(dst []pollEvent, timeoutMS int) ([]pollEvent, error) {
	n := maxEventsFromDst(dst)
	raw := make([]unix.EpollEvent, n)
	count, err := unix.EpollWait(p.epfd, raw, timeoutMS)
	if err != nil {
		return dst, err
	}
	for i := 0; i < count; i++ {
		fd := int(raw[i].Fd)
		var flags pollFlag
		if raw[i].Events&unix.EPOLLIN != 0 {
			flags |= pollRead
		}
		if raw[i].Events&unix.EPOLLOUT != 0 {
			flags |= pollWrite
		}
		if raw[i].Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			flags |= pollHangup
		}
		if raw[i].Events&unix.EPOLLERR != 0 {
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

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
