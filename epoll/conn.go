package epoll

import "golang.org/x/sys/unix"

// Conn adapts a raw non-blocking socket fd to the conn.Socket
// interface the Connection state machine drives.
type Conn struct {
	Fd int
}

func (c Conn) Read(b []byte) (int, error) {
	return unix.Read(c.Fd, b)
}

func (c Conn) Write(b []byte) (int, error) {
	return unix.Write(c.Fd, b)
}

// CloseWrite shuts down the write half of the connection, letting the
// peer observe EOF while a final read drain (if any) still completes.
func (c Conn) CloseWrite() error {
	return unix.Shutdown(c.Fd, unix.SHUT_WR)
}

func (c Conn) Close() error {
	return unix.Close(c.Fd)
}
