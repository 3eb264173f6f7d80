// Package errors defines the sentinel errors produced by the parser,
// serializer and connection state machine. Reactor-level code compares
// against these with errors.Is rather than inspecting strings.
package errors

import "errors"

var (
	// ErrBadRequest marks a request that the parser could not make sense
	// of: a malformed request line, a malformed header line, or malformed
	// chunked framing. Conflicting framing has its own
	// ErrConflictingFraming.
	ErrBadRequest = errors.New("malformed request")

	// ErrMethodNotImplemented is returned for a request-line method the
	// parser doesn't recognize.
	ErrMethodNotImplemented = errors.New("request method is not supported")

	// ErrUnsupportedProtocol is returned for an HTTP version other than
	// 1.0 or 1.1.
	ErrUnsupportedProtocol = errors.New("protocol is not supported")

	// ErrTooLarge marks a request whose total size would exceed
	// Options.MaxRequestSize.
	ErrTooLarge = errors.New("request exceeds the maximum allowed size")

	// ErrURITooLong marks a request-line URI exceeding the configured
	// limit, reported separately from ErrTooLarge since it is caught
	// before the rest of the request has even arrived.
	ErrURITooLong = errors.New("request URI too long")

	// ErrTooManyHeaders marks a request carrying more header fields than
	// Options.MaxHeaderCount allows.
	ErrTooManyHeaders = errors.New("too many headers")

	// ErrHeaderLineTooLong marks a single header line exceeding
	// Options.MaxHeaderLineSize.
	ErrHeaderLineTooLong = errors.New("header line too long")

	// ErrConflictingFraming marks a request that specifies both
	// Content-Length and Transfer-Encoding, or repeats Content-Length
	// with differing values.
	ErrConflictingFraming = errors.New("conflicting Content-Length and Transfer-Encoding")

	// ErrIdleTimeout marks a connection closed by the scheduler because
	// Options.RequestTimeout passed since it was accepted, its last
	// request was parsed, or its last response was queued, whichever
	// came latest. Bytes of a request still being received do not
	// restart the timer.
	ErrIdleTimeout = errors.New("connection idle timeout")

	// ErrHandlerPanic marks a request whose Handler panicked instead of
	// invoking its callback; the connection gets a 500 response in its
	// place.
	ErrHandlerPanic = errors.New("handler panicked while handling the request")

	// ErrShutdown marks a connection closed as part of Server.Stop,
	// after a best-effort write of the responses already serialized for
	// it.
	ErrShutdown = errors.New("server is shutting down")
)
