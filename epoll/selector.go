// Package epoll is the concrete, Linux-only transport primitive an
// EventLoop drives its readiness loop against: a golang.org/x/sys/unix
// wrapper around epoll(7), with an eventfd providing the selector
// wakeup the cross-thread queue needs.
package epoll

import (
	"golang.org/x/sys/unix"
)

// Event reports readiness for one registered file descriptor.
type Event struct {
	Fd       int32
	Readable bool
	Writable bool
	Error    bool
}

// Selector is a single epoll instance plus its wakeup eventfd. Not
// safe for concurrent use except for Wake, which is the one operation
// foreign threads are allowed to call.
type Selector struct {
	epfd   int
	wakeFd int
}

// New creates an epoll instance and its companion eventfd, and
// registers the eventfd for read readiness so Wake interrupts Wait.
func New() (*Selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	s := &Selector{epfd: epfd, wakeFd: wakeFd}
	if err := s.Register(wakeFd, true, false); err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(epfd)
		return nil, err
	}

	return s, nil
}

func eventMask(read, write bool) uint32 {
	var events uint32
	if read {
		events |= unix.EPOLLIN
	}
	if write {
		events |= unix.EPOLLOUT
	}

	return events
}

// Register starts watching fd for the given interest.
func (s *Selector) Register(fd int, read, write bool) error {
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: eventMask(read, write),
		Fd:     int32(fd),
	})
}

// Modify changes the interest fd is watched for.
func (s *Selector) Modify(fd int, read, write bool) error {
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: eventMask(read, write),
		Fd:     int32(fd),
	})
}

// Deregister stops watching fd. It does not close fd.
func (s *Selector) Deregister(fd int) error {
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks until at least one registered descriptor is ready or
// timeoutMillis elapses, a negative value meaning no timeout. It
// returns the ready events, excluding the internal wakeup descriptor;
// a Wake() call alone produces a zero-length, nil-error result.
func (s *Selector) Wait(buf []unix.EpollEvent, timeoutMillis int) ([]Event, error) {
	n, err := unix.EpollWait(s.epfd, buf, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}

		return nil, err
	}

	out := make([]Event, 0, n)

	for i := 0; i < n; i++ {
		ev := buf[i]
		if int(ev.Fd) == s.wakeFd {
			s.drainWake()
			continue
		}

		out = append(out, Event{
			Fd:       ev.Fd,
			Readable: ev.Events&unix.EPOLLIN != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Error:    ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		})
	}

	return out, nil
}

// drainWake reads the eventfd's accumulated counter so it doesn't
// stay readable forever after a single Wake.
func (s *Selector) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(s.wakeFd, buf[:])
}

// Wake interrupts a blocked Wait from any thread. Safe to call
// concurrently and safe to call more than once before Wait observes it.
func (s *Selector) Wake() error {
	one := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	_, err := unix.Write(s.wakeFd, one[:])
	return err
}

// Close releases the epoll instance and its wakeup eventfd. Connected
// and listening sockets registered with it are the caller's to close.
func (s *Selector) Close() error {
	err1 := unix.Close(s.wakeFd)
	err2 := unix.Close(s.epfd)

	if err1 != nil {
		return err1
	}

	return err2
}
