// Package loopd is a minimal, event-driven HTTP/1.x server core: a
// reactor-based event loop, an incremental byte-level request parser
// and a response serializer, wired together behind a small
// Handler contract. It materializes each request fully in memory
// before invoking the Handler and does not stream; TLS, HTTP/2,
// compression and routing are left to callers.
package loopd

import (
	"github.com/loopd-dev/loopd/http"
	"github.com/loopd-dev/loopd/log"
	"github.com/loopd-dev/loopd/options"
	"github.com/loopd-dev/loopd/server"
)

// Options configures a Server: bind address, concurrency, buffer and
// timeout budgets, and the Logger lifecycle events are reported
// through. Always start from DefaultOptions and override the fields
// that matter.
type Options = options.Options

// DefaultOptions returns a well-balanced Options value.
func DefaultOptions() *Options { return options.Default() }

// Request is the materialized view of a parsed HTTP/1.x request
// handed to a Handler.
type Request = http.Request

// Response is what a Handler produces for a Request.
type Response = http.Response

// NewResponse returns a Response with the given status and an empty
// header set, ready for chaining via its Header/SetBody methods.
func NewResponse(code int, reason string) *Response { return http.NewResponse(code, reason) }

// Handler is the single collaborator a Server drives: Handle is
// invoked exactly once per parsed Request, possibly from any thread,
// and must eventually invoke callback exactly once with the Response
// to send back.
type Handler = http.Handler

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc = http.HandlerFunc

// Logger receives connection lifecycle events.
type Logger = log.Logger

// Attr is a single structured field attached to a log event.
type Attr = log.Attr

// NopLogger discards every event.
var NopLogger = log.Nop

// Server binds one listening socket, runs Options.Concurrency
// reactors behind it, and drives handler for every request any of
// them parses.
type Server = server.Server

// New builds a Server ready to Start. handler is invoked once per
// request from whichever reactor owns the connection it arrived on.
func New(opts *Options, handler Handler) (*Server, error) {
	return server.New(opts, handler)
}
