package epoll

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Listen creates a non-blocking listening socket bound to host:port
// with the given backlog, optionally setting SO_REUSEADDR and
// SO_REUSEPORT. An empty host binds the IPv4 wildcard address; a host
// that parses as an IPv6 literal binds an AF_INET6 socket.
func Listen(host string, port int, reuseAddr, reusePort bool, backlog int) (int, error) {
	family, addr, err := resolveAddr(host, port)
	if err != nil {
		return -1, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}

	if reuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			_ = unix.Close(fd)
			return -1, err
		}
	}

	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			_ = unix.Close(fd)
			return -1, err
		}
	}

	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	return fd, nil
}

// resolveAddr decides the socket family from host and builds the
// matching unix.Sockaddr. An empty host means the IPv4 wildcard, to
// match Options.Host's documented default.
func resolveAddr(host string, port int) (int, unix.Sockaddr, error) {
	if host == "" {
		return unix.AF_INET, &unix.SockaddrInet4{Port: port}, nil
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return 0, nil, fmt.Errorf("epoll: invalid bind address %q", host)
	}

	if v4 := ip.To4(); v4 != nil {
		addr := &unix.SockaddrInet4{Port: port}
		copy(addr.Addr[:], v4)
		return unix.AF_INET, addr, nil
	}

	addr := &unix.SockaddrInet6{Port: port}
	copy(addr.Addr[:], ip.To16())

	return unix.AF_INET6, addr, nil
}

// Accept accepts one pending connection on the non-blocking listening
// socket fd, returning the new socket already set non-blocking. A
// caller seeing unix.EAGAIN should stop accepting for this readiness
// cycle.
func Accept(fd int) (int, error) {
	connFd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return connFd, err
}

// SetNoDelay toggles TCP_NODELAY on a connected socket.
func SetNoDelay(fd int, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}

	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}
