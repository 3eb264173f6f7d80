package http1

import (
	"strconv"

	"github.com/loopd-dev/loopd/http"
	"github.com/loopd-dev/loopd/internal/strutil"
)

// Serialize appends the on-wire byte representation of resp to dst and
// returns the grown slice. keepAlive is the connection's own
// keep-alive decision (from the request that produced resp); it only
// matters when resp doesn't already carry a Connection header.
//
// The Response is never mutated: Content-Length and Connection are
// added to the emitted bytes, not to resp.Headers.
func Serialize(dst []byte, resp *http.Response, keepAlive bool) []byte {
	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendInt(dst, int64(resp.Code), 10)
	dst = append(dst, ' ')
	dst = append(dst, resp.Reason...)
	dst = append(dst, "\r\n"...)

	chunked := isChunked(resp)
	hasContentLength := resp.Headers.Has("Content-Length")
	hasConnection := resp.Headers.Has("Connection")

	for key, value := range resp.Headers.Iter() {
		dst = append(dst, key...)
		dst = append(dst, ':', ' ')
		dst = append(dst, value...)
		dst = append(dst, "\r\n"...)
	}

	if !chunked && !hasContentLength {
		dst = append(dst, "Content-Length: "...)
		dst = strconv.AppendInt(dst, int64(len(resp.Body)), 10)
		dst = append(dst, "\r\n"...)
	}

	if !hasConnection && !keepAlive {
		dst = append(dst, "Connection: close\r\n"...)
	}

	dst = append(dst, "\r\n"...)

	if chunked {
		return appendChunk(dst, resp.Body)
	}

	return append(dst, resp.Body...)
}

func isChunked(resp *http.Response) bool {
	te, found := resp.Headers.Get("Transfer-Encoding")
	return found && strutil.CmpFold(strutil.TrimOWS(te), "chunked")
}

// appendChunk frames body as a single chunk followed by the
// zero-length terminator, per spec: this serializer never splits a
// materialized body across multiple chunks.
func appendChunk(dst, body []byte) []byte {
	if len(body) > 0 {
		dst = strconv.AppendInt(dst, int64(len(body)), 16)
		dst = append(dst, "\r\n"...)
		dst = append(dst, body...)
		dst = append(dst, "\r\n"...)
	}

	return append(dst, "0\r\n\r\n"...)
}
