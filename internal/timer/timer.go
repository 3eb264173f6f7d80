// Package timer is a cached wall clock: Connection and EventLoop check
// the current time on every completed request and every selector
// wakeup, and a real time.Now() call is a syscall on most platforms.
// A background goroutine refreshes a shared millisecond counter every
// Resolution instead, which is precise enough for idle-timeout
// bookkeeping.
package timer

import (
	"sync/atomic"
	"time"
)

// millis holds the unix time in milliseconds, refreshed every
// Resolution.
var millis = new(atomic.Int64)

// Resolution is the refresh interval. 100ms is well under the
// smallest idle timeout any reasonable Options.RequestTimeout would
// set, so the cached value never visibly lags a real clock read.
const Resolution = 100 * time.Millisecond

// NowMillis returns the cached unix time in milliseconds.
func NowMillis() int64 { return millis.Load() }

func init() {
	millis.Store(time.Now().UnixMilli())

	go func() {
		for {
			time.Sleep(Resolution)
			millis.Store(time.Now().UnixMilli())
		}
	}()
}
