package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsumeUntil(t *testing.T) {
	t.Run("found in one shot", func(t *testing.T) {
		tok := New(16, 64)
		require.NoError(t, tok.Append([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")))

		line, err := tok.ConsumeUntil([]byte("\r\n"), 64)
		require.NoError(t, err)
		require.Equal(t, "GET / HTTP/1.1", string(line))
	})

	t.Run("incomplete across two appends", func(t *testing.T) {
		tok := New(16, 64)
		require.NoError(t, tok.Append([]byte("GET / HTTP")))

		_, err := tok.ConsumeUntil([]byte("\r\n"), 64)
		require.ErrorIs(t, err, ErrIncomplete)

		require.NoError(t, tok.Append([]byte("/1.1\r\n")))
		line, err := tok.ConsumeUntil([]byte("\r\n"), 64)
		require.NoError(t, err)
		require.Equal(t, "GET / HTTP/1.1", string(line))
	})

	t.Run("overflow without delimiter", func(t *testing.T) {
		tok := New(16, 8)
		require.ErrorIs(t, tok.Append([]byte("123456789")), ErrOverflow)
	})

	t.Run("overflow past maxLen with delimiter still missing", func(t *testing.T) {
		tok := New(16, 64)
		require.NoError(t, tok.Append([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaa")))

		_, err := tok.ConsumeUntil([]byte("\r\n"), 8)
		require.ErrorIs(t, err, ErrOverflow)
	})
}

func TestCompactInvalidatesOffsets(t *testing.T) {
	tok := New(16, 64)
	require.NoError(t, tok.Append([]byte("Hello, World!")))

	hello := tok.Consume(5)
	require.Equal(t, "Hello", string(hello))

	tok.Compact()
	require.NoError(t, tok.Append([]byte("!!")))
	require.Equal(t, ", World!!!", string(tok.Remaining()))
}

func TestPeek(t *testing.T) {
	tok := New(16, 64)
	require.NoError(t, tok.Append([]byte("AB")))

	c, ok := tok.Peek(0)
	require.True(t, ok)
	require.Equal(t, byte('A'), c)

	_, ok = tok.Peek(5)
	require.False(t, ok)
}
