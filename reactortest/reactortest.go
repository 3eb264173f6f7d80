// Package reactortest provides in-memory fakes for driving a
// Connection without a real socket or a real epoll selector, in the
// style of the teacher's internal/tcp/dummy connection fakes.
package reactortest

import (
	"io"

	"golang.org/x/sys/unix"
)

// Socket is an in-memory conn.Socket: reads come from a preloaded
// byte queue, writes accumulate into a buffer, both inspectable after
// the fact.
type Socket struct {
	in      []byte
	pos     int
	eof     bool
	Written []byte
	Closed  bool
}

// NewSocket returns a Socket that yields in when read, then reports
// EOF if eof is true or unix.EAGAIN otherwise once in is exhausted.
func NewSocket(in []byte, eof bool) *Socket {
	return &Socket{in: in, eof: eof}
}

// Feed appends more bytes for subsequent Read calls to return, as if
// more data had arrived on the wire.
func (s *Socket) Feed(b []byte) { s.in = append(s.in, b...) }

func (s *Socket) Read(b []byte) (int, error) {
	if s.pos >= len(s.in) {
		if s.eof {
			return 0, io.EOF
		}
		return 0, unix.EAGAIN
	}

	n := copy(b, s.in[s.pos:])
	s.pos += n

	return n, nil
}

func (s *Socket) Write(b []byte) (int, error) {
	s.Written = append(s.Written, b...)
	return len(b), nil
}

func (s *Socket) CloseWrite() error { return nil }

func (s *Socket) Close() error {
	s.Closed = true
	return nil
}

// ModifyCall records one Selector.Modify invocation.
type ModifyCall struct {
	Fd          int
	Read, Write bool
}

// Selector is an in-memory conn.Selector that records every interest
// change instead of touching a real epoll instance.
type Selector struct {
	Modifies     []ModifyCall
	Deregistered bool
}

func (s *Selector) Modify(fd int, read, write bool) error {
	s.Modifies = append(s.Modifies, ModifyCall{fd, read, write})
	return nil
}

func (s *Selector) Deregister(int) error {
	s.Deregistered = true
	return nil
}

// LastModify returns the most recent Modify call and true, or a zero
// value and false if none happened yet.
func (s *Selector) LastModify() (ModifyCall, bool) {
	if len(s.Modifies) == 0 {
		return ModifyCall{}, false
	}

	return s.Modifies[len(s.Modifies)-1], true
}
