// Package server implements the Server supervisor: it binds one
// listening socket, creates Options.Concurrency EventLoops and
// distributes accepted connections across them. Grounded on the
// teacher's transport.Supervisor goroutine fan-out, trimmed of its
// multi-listener/TLS concerns (out of scope here) down to the single
// plain-TCP listener this library binds.
package server

import (
	"fmt"
	"sync"

	"github.com/loopd-dev/loopd/epoll"
	"github.com/loopd-dev/loopd/http"
	"github.com/loopd-dev/loopd/log"
	"github.com/loopd-dev/loopd/options"
	"github.com/loopd-dev/loopd/reactor"
)

// Server owns the listening socket and the reactor set behind it.
type Server struct {
	opts     *options.Options
	loops    []*reactor.EventLoop
	listenFd int

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// New builds a Server with Options.Concurrency EventLoops, none of
// them started yet.
func New(opts *options.Options, handler http.Handler) (*Server, error) {
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("server: concurrency must be at least 1, got %d", opts.Concurrency)
	}

	s := &Server{opts: opts, listenFd: -1}

	for i := 0; i < opts.Concurrency; i++ {
		loop, err := reactor.New(i, opts, handler)
		if err != nil {
			s.closeLoops()
			return nil, err
		}

		s.loops = append(s.loops, loop)
	}

	for _, loop := range s.loops {
		loop.SetPeers(s.loops)
	}

	return s, nil
}

// Start binds the listening socket on loop 0 (the acceptor, per the
// single-acceptor round-robin distribution policy) and starts every
// EventLoop on its own goroutine. Start returns once every loop is
// running; it does not block for the server's lifetime, use Join for
// that.
func (s *Server) Start() error {
	fd, err := epoll.Listen(s.opts.Host, s.opts.Port, s.opts.ReuseAddr, s.opts.ReusePort, s.opts.AcceptLength)
	if err != nil {
		return err
	}

	s.listenFd = fd

	if err := s.loops[0].BindListener(fd); err != nil {
		_ = epoll.Conn{Fd: fd}.Close()
		return err
	}

	for _, loop := range s.loops {
		s.wg.Add(1)

		go func(loop *reactor.EventLoop) {
			defer s.wg.Done()

			if err := loop.Run(); err != nil {
				s.errOnce.Do(func() { s.err = err })
			}
		}(loop)
	}

	return nil
}

// Join blocks until every EventLoop has returned, then reports the
// first error any of them returned, if any.
func (s *Server) Join() error {
	s.wg.Wait()
	return s.err
}

// Stop asks every EventLoop to close its Connections and terminate,
// then blocks until they all have. Safe to call once Start has
// returned successfully.
func (s *Server) Stop() error {
	for _, loop := range s.loops {
		loop.Stop()
	}

	return s.Join()
}

func (s *Server) closeLoops() {
	for _, loop := range s.loops {
		_ = loop.Close()
	}
}

// Logger returns the Options.Logger this Server was built with, for
// callers that want to log around Start/Stop without threading their
// own reference through.
func (s *Server) Logger() log.Logger { return s.opts.Logger }
