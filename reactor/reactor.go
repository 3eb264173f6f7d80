// Package reactor implements the EventLoop: a single-threaded,
// cooperative readiness loop that owns a disjoint set of Connections,
// a Scheduler, and the selector it polls. Grounded on the teacher's
// goroutine-per-listener fan-out in transport.Supervisor, reshaped
// from "one goroutine per accepted connection" into "N pinned
// goroutines, each multiplexing many connections via epoll".
package reactor

import (
	"time"

	"github.com/loopd-dev/loopd/conn"
	"github.com/loopd-dev/loopd/epoll"
	"github.com/loopd-dev/loopd/http"
	"github.com/loopd-dev/loopd/internal/id"
	"github.com/loopd-dev/loopd/internal/timer"
	"github.com/loopd-dev/loopd/log"
	"github.com/loopd-dev/loopd/options"
	"github.com/loopd-dev/loopd/queue"
	"github.com/loopd-dev/loopd/scheduler"
	"golang.org/x/sys/unix"
)

// EventLoop is one reactor: a selector, a scheduler, a bounded
// cross-thread queue and the Connections it currently owns. Safe to
// drive only from the single goroutine running Run; Queue and the
// selector's Wake are the lone entry points other threads may use.
type EventLoop struct {
	index   int
	sel     *epoll.Selector
	sched   *scheduler.Scheduler
	queue   *queue.Queue
	opts    *options.Options
	logger  log.Logger
	handler http.Handler

	conns map[int]*conn.Connection

	listenFd int
	peers    []*EventLoop
	nextPeer int

	stopping bool
}

// New returns an EventLoop at the given index in the supervisor's
// reactor set. index is used only for log correlation; the
// round-robin accept distribution walks the peer list set by SetPeers.
func New(index int, opts *options.Options, handler http.Handler) (*EventLoop, error) {
	sel, err := epoll.New()
	if err != nil {
		return nil, err
	}

	capacity := opts.PipelineDepth * 16

	return &EventLoop{
		index:   index,
		sel:     sel,
		sched:   scheduler.New(),
		queue:   queue.New(capacity),
		opts:    opts,
		logger:  opts.Logger,
		handler: handler,
		conns:   make(map[int]*conn.Connection),
	}, nil
}

// SetPeers records the full reactor set for round-robin accept
// dispatch; only meaningful on the acceptor loop, but harmless to set
// on every loop.
func (l *EventLoop) SetPeers(peers []*EventLoop) { l.peers = peers }

// BindListener registers fd as this loop's listening socket, making
// it the accept-distributing loop per the single-acceptor policy.
func (l *EventLoop) BindListener(fd int) error {
	l.listenFd = fd
	return l.sel.Register(fd, true, false)
}

// Close releases this loop's selector directly, for callers that
// never started Run — e.g. the supervisor unwinding already-built
// loops after a later one failed to construct.
func (l *EventLoop) Close() error { return l.sel.Close() }

// Wake interrupts a blocked poll from any thread.
func (l *EventLoop) Wake() error { return l.sel.Wake() }

// Queue exposes this loop's cross-thread inbox for peer loops
// dispatching newly accepted connections.
func (l *EventLoop) Queue() *queue.Queue { return l.queue }

// Stop asks the loop to wind down at the start of its next iteration:
// close every Connection, close the selector, and return from Run.
func (l *EventLoop) Stop() {
	l.stopping = true
	_ = l.sel.Wake()
}

// Run drives the loop until Stop is called. Intended to be the entire
// body of the goroutine the supervisor starts for this reactor.
func (l *EventLoop) Run() error {
	events := make([]unix.EpollEvent, 256)

	for {
		if l.stopping {
			l.shutdown()
			return nil
		}

		timeout := l.pollTimeout()

		ready, err := l.sel.Wait(events, timeout)
		if err != nil {
			l.logEvent("selector_error", log.Attr{Key: "err", Value: err.Error()})
			return err
		}

		for _, fn := range l.queue.Drain() {
			fn()
		}

		for _, ev := range ready {
			l.dispatchEvent(ev)
		}

		l.sched.RunDue(timer.NowMillis())
	}
}

func (l *EventLoop) dispatchEvent(ev epoll.Event) {
	fd := int(ev.Fd)

	if fd == l.listenFd {
		l.acceptLoop()
		return
	}

	c, ok := l.conns[fd]
	if !ok {
		return
	}

	if ev.Error {
		c.OnError()
		return
	}

	if ev.Writable {
		c.OnWritable()
	}

	if !c.Closed() && ev.Readable {
		c.OnReadable()
	}
}

// pollTimeout clamps the selector wait to the next scheduled
// deadline, bounded by Options.Resolution, per the idle-timeout
// resolution rule.
func (l *EventLoop) pollTimeout() int {
	resolution := int(l.opts.Resolution / time.Millisecond)

	deadline, ok := l.sched.NextDeadline()
	if !ok {
		return resolution
	}

	remaining := int(deadline - timer.NowMillis())
	if remaining < 0 {
		return 0
	}

	if remaining > resolution {
		return resolution
	}

	return remaining
}

// acceptLoop drains every pending connection on the listening socket,
// round-robining each to a peer loop's inbox.
func (l *EventLoop) acceptLoop() {
	for {
		fd, err := epoll.Accept(l.listenFd)
		if err != nil {
			if err != unix.EAGAIN {
				l.logEvent("io_error", log.Attr{Key: "err", Value: err.Error()})
			}
			return
		}

		if l.opts.NoDelay {
			_ = epoll.SetNoDelay(fd, true)
		}

		l.dispatch(fd)
	}
}

func (l *EventLoop) dispatch(fd int) {
	if len(l.peers) == 0 {
		l.adopt(fd)
		return
	}

	peer := l.peers[l.nextPeer]
	l.nextPeer = (l.nextPeer + 1) % len(l.peers)

	if peer == l {
		l.adopt(fd)
		return
	}

	peer.queue.Push(func() { peer.adopt(fd) })
	_ = peer.sel.Wake()
}

// adopt takes ownership of a freshly accepted (or freshly dispatched)
// fd: wraps it in a Connection, registers it for read interest and
// starts its idle-timeout clock.
func (l *EventLoop) adopt(fd int) {
	connID := id.New()

	c := conn.New(conn.Config{
		ID:        connID,
		Fd:        fd,
		Socket:    epoll.Conn{Fd: fd},
		Selector:  l.sel,
		Options:   l.opts,
		Logger:    l.logger,
		Scheduler: l.sched,
		Queue:     l.queue,
		Wake:      l.sel.Wake,
		Handler:   l.handler,
		OnClose:   l.forget,
	})

	l.conns[fd] = c

	if err := l.sel.Register(fd, true, false); err != nil {
		l.logEvent("io_error", log.Attr{Key: "err", Value: err.Error()})
		c.OnError()
		return
	}

	l.logEvent("connection_accepted", log.Attr{Key: "conn", Value: connID})
}

func (l *EventLoop) forget(c *conn.Connection) {
	delete(l.conns, c.Fd)
}

func (l *EventLoop) shutdown() {
	for _, c := range l.conns {
		c.OnShutdown()
	}

	_ = l.sel.Close()
}

func (l *EventLoop) logEvent(name string, attrs ...log.Attr) {
	if l.logger.Enabled(name) {
		l.logger.Log(name, append([]log.Attr{{Key: "loop", Value: l.index}}, attrs...)...)
	}
}

