// Package http holds the plain value types passed across the Handler
// boundary: Request, Response and the Header storage they share.
package http

import (
	"github.com/loopd-dev/loopd/http/method"
	"github.com/loopd-dev/loopd/http/version"
	"github.com/loopd-dev/loopd/kv"
)

// Request is the fully materialized, immutable view of a parsed HTTP
// request handed to the Handler. Every byte slice it references has
// already been copied out of the connection's read buffer, so it
// remains valid past the next read.
type Request struct {
	Method method.Method
	// URI is the request target verbatim, as it appeared between the
	// method and the version tokens on the wire. It is not decoded or
	// split into path and query; that's a router's job, not this
	// library's.
	URI     string
	Version version.Version
	Headers *kv.Storage
	Body    []byte
	// KeepAlive is the connection's keep-alive decision for this
	// request, per version defaults and any explicit Connection
	// header, latched at parse time.
	KeepAlive bool
}
