// Package kv implements the case-insensitive ordered key/value storage
// used for request and response headers. A linear scan beats a map for
// the handful of headers a typical request carries, and preserves
// insertion order, which the response serializer depends on to emit
// headers verbatim in the order the caller set them.
package kv

import (
	"iter"

	"github.com/loopd-dev/loopd/internal/strutil"
)

// Pair is a single stored key/value entry.
type Pair struct {
	Key, Value string
}

// Storage is an append-only, case-insensitively-keyed list of pairs.
type Storage struct {
	pairs []Pair
}

// New returns an empty Storage.
func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns an empty Storage with room for n pairs.
func NewPrealloc(n int) *Storage {
	return &Storage{pairs: make([]Pair, 0, n)}
}

// Add appends a new key/value pair. Existing pairs under the same key
// (compared case-insensitively) are left untouched, so a header may
// appear more than once.
func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{Key: key, Value: value})
	return s
}

// Value returns the first value stored under key, or "" if absent.
func (s *Storage) Value(key string) string {
	return s.ValueOr(key, "")
}

// ValueOr returns the first value stored under key, or or if absent.
func (s *Storage) ValueOr(key, or string) string {
	if value, found := s.Get(key); found {
		return value
	}

	return or
}

// Get returns the first value stored under key and whether it was found.
func (s *Storage) Get(key string) (value string, found bool) {
	for _, pair := range s.pairs {
		if strutil.CmpFold(key, pair.Key) {
			return pair.Value, true
		}
	}

	return "", false
}

// Iter returns an iterator over the pairs in insertion order, the order
// the serializer emits them in.
func (s *Storage) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range s.pairs {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Has reports whether key is present.
func (s *Storage) Has(key string) bool {
	_, found := s.Get(key)
	return found
}

// Len returns the number of stored pairs.
func (s *Storage) Len() int {
	return len(s.pairs)
}

// Expose exposes the underlying pairs slice, in insertion order.
func (s *Storage) Expose() []Pair {
	return s.pairs
}

// Clear removes every pair without releasing the underlying storage.
func (s *Storage) Clear() *Storage {
	s.pairs = s.pairs[:0]
	return s
}
