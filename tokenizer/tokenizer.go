// Package tokenizer implements the append-only byte buffer the HTTP/1.x
// parser is driven from: data arrives in arbitrarily-sized chunks from the
// socket, and the parser must be able to resume mid-token across chunk
// boundaries without copying bytes it has already looked at.
package tokenizer

import (
	"bytes"
	"errors"
)

// ErrOverflow is returned by Append and ConsumeUntil when accepting more
// bytes would exceed the configured maximum size.
var ErrOverflow = errors.New("tokenizer: request exceeds maximum size")

// ErrIncomplete is returned by ConsumeUntil when the delimiter hasn't
// appeared yet in the buffered data.
var ErrIncomplete = errors.New("tokenizer: delimiter not found yet")

// Tokenizer is an append-only byte region with a read cursor. Slices
// returned by Consume and ConsumeUntil are views over the internal buffer
// and are invalidated by the next call to Compact; callers that need to
// retain them (e.g. into a Request's headers or body) must copy them out
// first.
type Tokenizer struct {
	buf     []byte
	cursor  int
	maxSize int
}

// New returns a Tokenizer with initialSize pre-allocated and maxSize as the
// hard cap on the number of bytes it will ever hold (spec's maxRequestSize).
func New(initialSize, maxSize int) *Tokenizer {
	return &Tokenizer{
		buf:     make([]byte, 0, initialSize),
		maxSize: maxSize,
	}
}

// Append adds data to the buffer. It reports ErrOverflow instead of growing
// past maxSize, leaving the buffer unmodified.
func (t *Tokenizer) Append(data []byte) error {
	if len(t.buf)+len(data) > t.maxSize {
		return ErrOverflow
	}

	t.buf = append(t.buf, data...)
	return nil
}

// Len returns the number of unconsumed bytes.
func (t *Tokenizer) Len() int {
	return len(t.buf) - t.cursor
}

// Remaining returns the unconsumed bytes without moving the cursor. The
// returned slice is a view; see the package doc for aliasing rules.
func (t *Tokenizer) Remaining() []byte {
	return t.buf[t.cursor:]
}

// Peek returns the byte at offset i past the cursor, and false if there's
// no such byte buffered yet.
func (t *Tokenizer) Peek(i int) (byte, bool) {
	idx := t.cursor + i
	if idx >= len(t.buf) {
		return 0, false
	}

	return t.buf[idx], true
}

// Consume advances the cursor by n bytes and returns the consumed view. n
// must not exceed Len().
func (t *Tokenizer) Consume(n int) []byte {
	start := t.cursor
	t.cursor += n
	return t.buf[start:t.cursor]
}

// ConsumeUntil scans the unconsumed region for delim. If found, it consumes
// through (and including) the delimiter and returns the bytes before it,
// excluding the delimiter itself. If the scanned prefix (including a
// would-be delimiter) would exceed maxLen bytes without the delimiter
// appearing, it returns ErrOverflow. Otherwise it returns ErrIncomplete and
// leaves the cursor untouched, so the caller can append more and retry.
func (t *Tokenizer) ConsumeUntil(delim []byte, maxLen int) ([]byte, error) {
	region := t.buf[t.cursor:]
	scanLen := len(region)
	if scanLen > maxLen {
		scanLen = maxLen
	}

	idx := bytes.Index(region[:scanLen], delim)
	if idx == -1 {
		if len(region) > maxLen {
			return nil, ErrOverflow
		}

		return nil, ErrIncomplete
	}

	start := t.cursor
	t.cursor += idx + len(delim)

	return t.buf[start : start+idx], nil
}

// Compact drops the consumed prefix, copying the remaining bytes to the
// front of the internal buffer. Any slice previously returned by Consume,
// ConsumeUntil or Remaining is invalidated by this call.
func (t *Tokenizer) Compact() {
	if t.cursor == 0 {
		return
	}

	n := copy(t.buf, t.buf[t.cursor:])
	t.buf = t.buf[:n]
	t.cursor = 0
}
