// Package bconv provides zero-copy conversions between byte slices and strings,
// used on the hot path of parsing and serializing where an allocation per header
// or per request line would show up in a profile.
package bconv

import "unsafe"

// B2S reinterprets b as a string without copying. The returned string must not
// outlive the backing array of b, and b must not be mutated afterward.
func B2S(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// S2B reinterprets s as a byte slice without copying. The returned slice must
// never be written to.
func S2B(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
