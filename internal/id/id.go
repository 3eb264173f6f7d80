// Package id generates short opaque identifiers used only to correlate log
// events belonging to the same connection; they carry no other meaning.
package id

import "github.com/dchest/uniuri"

const length = 8

// New returns a new random identifier, e.g. "a8GzU3bQ".
func New() string {
	return uniuri.NewLen(length)
}
