// Package options holds the immutable configuration record a Server is
// built from. Mirrors the teacher repo's config package: a plain struct
// plus a Default constructor, never zero-value-constructed by callers.
package options

import (
	"time"

	"github.com/loopd-dev/loopd/log"
)

// Options configures a Server. Always start from Default() and override
// individual fields; the zero value leaves Logger nil and Concurrency at
// 0, which the Server rejects.
type Options struct {
	// Host is the bind address. Empty means the wildcard address.
	Host string
	// Port is the TCP port to listen on.
	Port int
	// ReuseAddr sets SO_REUSEADDR on the listening socket.
	ReuseAddr bool
	// ReusePort sets SO_REUSEPORT on the listening socket. Note this
	// library always uses the single-acceptor round-robin distribution
	// policy (see Concurrency); ReusePort only affects how the listening
	// socket itself behaves across process restarts, not how accepted
	// connections are spread across reactors.
	ReusePort bool
	// AcceptLength is the listen backlog.
	AcceptLength int
	// Concurrency is the number of EventLoop reactors to run. Must be
	// at least 1.
	Concurrency int
	// MaxRequestSize is the hard cap, in bytes, on a single request
	// (request line + headers + body combined) before the connection is
	// closed as oversized.
	MaxRequestSize int
	// ReadBufferSize is the chunk size used per read(2) call.
	ReadBufferSize int
	// Resolution is the scheduler's tick granularity: how often pending
	// timeouts are checked against the clock.
	Resolution time.Duration
	// RequestTimeout is the idle timeout between a completed request and
	// the next byte of the following one (and before the first request
	// on a freshly accepted connection).
	RequestTimeout time.Duration
	// MaxHeaderCount caps the number of header fields a single request
	// may carry.
	MaxHeaderCount int
	// MaxHeaderLineSize caps the length of a single header line. Zero
	// means MaxRequestSize is used as the per-line cap; the line is not
	// measured against the bytes the request has already consumed.
	MaxHeaderLineSize int
	// NoDelay sets TCP_NODELAY on accepted connections.
	NoDelay bool
	// PipelineDepth caps the number of in-flight pipelined requests a
	// Connection will buffer before pausing reads.
	PipelineDepth int
	// Logger receives connection lifecycle events. Defaults to a no-op
	// logger that never allocates.
	Logger log.Logger
}

// Default returns a well-balanced Options value. Callers override only
// the fields they care about.
func Default() *Options {
	return &Options{
		Host:              "",
		Port:              8080,
		ReuseAddr:         true,
		ReusePort:         false,
		AcceptLength:      1024,
		Concurrency:       1,
		MaxRequestSize:    1 * 1024 * 1024, // 1 megabyte
		ReadBufferSize:    4 * 1024,
		Resolution:        500 * time.Millisecond,
		RequestTimeout:    90 * time.Second,
		MaxHeaderCount:    128,
		MaxHeaderLineSize: 0,
		NoDelay:           true,
		PipelineDepth:     256,
		Logger:            log.Nop,
	}
}
