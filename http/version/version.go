// Package version implements the HTTP version token from the request
// line. Only HTTP/1.0 and HTTP/1.1 are recognized; anything else,
// including upgrade negotiation to HTTP/2, is out of scope.
package version

import "github.com/loopd-dev/loopd/internal/bconv"

// Version identifies the HTTP version of a request or response line.
type Version uint8

const (
	Unknown Version = iota
	HTTP10
	HTTP11
)

// String returns the wire representation of v, without a trailing
// space, or "" for Unknown.
func (v Version) String() string {
	switch v {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	default:
		return ""
	}
}

const (
	tokenLength = len("HTTP/x.x")
	majorOffset = len("HTTP/x") - 1
	minorOffset = len("HTTP/x.x") - 1
	scheme      = "HTTP/"
)

// FromBytes parses the version token from a request line, e.g.
// "HTTP/1.1". Returns Unknown for anything that isn't exactly one of
// the two supported versions.
func FromBytes(raw []byte) Version {
	if len(raw) != tokenLength || bconv.B2S(raw[:majorOffset]) != scheme || raw[majorOffset+1] != '.' {
		return Unknown
	}

	return Parse(raw[majorOffset]-'0', raw[minorOffset]-'0')
}

// Parse returns the Version matching the given major.minor digits.
func Parse(major, minor byte) Version {
	switch {
	case major == 1 && minor == 0:
		return HTTP10
	case major == 1 && minor == 1:
		return HTTP11
	default:
		return Unknown
	}
}
