package reactor

import (
	"os"
	"testing"
	"time"

	"github.com/loopd-dev/loopd/http"
	"github.com/loopd-dev/loopd/internal/timer"
	"github.com/loopd-dev/loopd/options"
	"github.com/stretchr/testify/require"
)

// testFd returns a real, pollable file descriptor (one end of an OS
// pipe) so epoll registration inside adopt succeeds, closed on test
// cleanup.
func testFd(t *testing.T) int {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})

	return int(r.Fd())
}

func newTestLoop(t *testing.T, index int) *EventLoop {
	t.Helper()

	opts := options.Default()
	handler := http.HandlerFunc(func(*http.Request, func(*http.Response)) {})

	l, err := New(index, opts, handler)
	require.NoError(t, err)

	t.Cleanup(func() { _ = l.sel.Close() })

	return l
}

func TestDispatchRoundRobinsAcrossPeers(t *testing.T) {
	acceptor := newTestLoop(t, 0)
	peer1 := newTestLoop(t, 1)
	peer2 := newTestLoop(t, 2)

	peers := []*EventLoop{acceptor, peer1, peer2}
	for _, l := range peers {
		l.SetPeers(peers)
	}

	local := testFd(t)
	acceptor.dispatch(local)
	acceptor.dispatch(11)
	acceptor.dispatch(12)

	require.Contains(t, acceptor.conns, local)
	require.Equal(t, 1, peer1.queue.Len())
	require.Equal(t, 1, peer2.queue.Len())
}

func TestDispatchWithoutPeersAdoptsLocally(t *testing.T) {
	l := newTestLoop(t, 0)

	fd := testFd(t)
	l.dispatch(fd)

	require.Contains(t, l.conns, fd)
}

func TestPollTimeoutClampsToResolution(t *testing.T) {
	l := newTestLoop(t, 0)
	l.opts.Resolution = 500 * time.Millisecond

	require.Equal(t, 500, l.pollTimeout())
}

func TestPollTimeoutClampsToNextDeadline(t *testing.T) {
	l := newTestLoop(t, 0)
	l.opts.Resolution = 500 * time.Millisecond
	l.sched.Schedule(timer.NowMillis()+10, func() {})

	timeout := l.pollTimeout()
	require.LessOrEqual(t, timeout, 10)
	require.GreaterOrEqual(t, timeout, 0)
}
