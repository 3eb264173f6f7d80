package http1_test

import (
	"testing"

	"github.com/loopd-dev/loopd/http/method"
	"github.com/loopd-dev/loopd/http/version"
	"github.com/loopd-dev/loopd/http1"
	"github.com/loopd-dev/loopd/options"
	"github.com/loopd-dev/loopd/tokenizer"
	"github.com/stretchr/testify/require"
)

func newTok(t *testing.T, opts *options.Options) *tokenizer.Tokenizer {
	t.Helper()
	return tokenizer.New(256, opts.MaxRequestSize)
}

func TestParseMinimalGET(t *testing.T) {
	opts := options.Default()
	tok := newTok(t, opts)
	p := http1.New(opts)

	require.NoError(t, tok.Append([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")))

	req, err := p.Parse(tok)
	require.NoError(t, err)
	require.NotNil(t, req)
	require.Equal(t, method.GET, req.Method)
	require.Equal(t, "/", req.URI)
	require.Equal(t, version.HTTP11, req.Version)
	require.Equal(t, "x", req.Headers.Value("Host"))
	require.Empty(t, req.Body)
	require.True(t, req.KeepAlive)
}

func TestParseAcrossChunkBoundaries(t *testing.T) {
	opts := options.Default()
	tok := newTok(t, opts)
	p := http1.New(opts)

	require.NoError(t, tok.Append([]byte("GET / HTTP")))
	req, err := p.Parse(tok)
	require.NoError(t, err)
	require.Nil(t, req)

	require.NoError(t, tok.Append([]byte("/1.1\r\nHost: x\r\n\r\n")))
	req, err = p.Parse(tok)
	require.NoError(t, err)
	require.NotNil(t, req)
	require.Equal(t, "/", req.URI)
}

func TestParseFixedBody(t *testing.T) {
	opts := options.Default()
	tok := newTok(t, opts)
	p := http1.New(opts)

	raw := "POST /submit HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	require.NoError(t, tok.Append([]byte(raw)))

	req, err := p.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, method.POST, req.Method)
	require.Equal(t, "hello", string(req.Body))
}

func TestParseChunkedBody(t *testing.T) {
	opts := options.Default()
	tok := newTok(t, opts)
	p := http1.New(opts)

	raw := "POST /submit HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	require.NoError(t, tok.Append([]byte(raw)))

	req, err := p.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(req.Body))
}

func TestParsePipelinedRequests(t *testing.T) {
	opts := options.Default()
	tok := newTok(t, opts)
	p := http1.New(opts)

	one := "GET /a HTTP/1.1\r\nHost: x\r\n\r\n"
	two := "GET /b HTTP/1.1\r\nHost: x\r\n\r\n"
	require.NoError(t, tok.Append([]byte(one + two)))

	req1, err := p.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "/a", req1.URI)

	req2, err := p.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "/b", req2.URI)

	require.Equal(t, 0, tok.Len())
}

func TestParseHTTP10DefaultsToClose(t *testing.T) {
	opts := options.Default()
	tok := newTok(t, opts)
	p := http1.New(opts)

	require.NoError(t, tok.Append([]byte("GET / HTTP/1.0\r\nHost: x\r\n\r\n")))
	req, err := p.Parse(tok)
	require.NoError(t, err)
	require.NotNil(t, req)
	require.False(t, req.KeepAlive)
}

func TestParseRejectsConflictingFraming(t *testing.T) {
	opts := options.Default()
	tok := newTok(t, opts)
	p := http1.New(opts)

	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\nhello"
	require.NoError(t, tok.Append([]byte(raw)))

	_, err := p.Parse(tok)
	require.Error(t, err)
}

func TestParseRejectsUnknownMethod(t *testing.T) {
	opts := options.Default()
	tok := newTok(t, opts)
	p := http1.New(opts)

	require.NoError(t, tok.Append([]byte("FETCH / HTTP/1.1\r\nHost: x\r\n\r\n")))

	_, err := p.Parse(tok)
	require.Error(t, err)
}

func TestParseExpectContinue(t *testing.T) {
	opts := options.Default()
	tok := newTok(t, opts)
	p := http1.New(opts)

	headers := "POST / HTTP/1.1\r\nHost: x\r\nExpect: 100-continue\r\nContent-Length: 2\r\n\r\n"
	require.NoError(t, tok.Append([]byte(headers)))

	req, err := p.Parse(tok)
	require.NoError(t, err)
	require.Nil(t, req)
	require.True(t, p.ExpectContinue)
	require.True(t, p.TakeContinue())
	require.False(t, p.TakeContinue())

	require.NoError(t, tok.Append([]byte("hi")))
	req, err = p.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "hi", string(req.Body))
}
