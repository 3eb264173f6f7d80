package http1_test

import (
	"testing"

	"github.com/loopd-dev/loopd/http"
	"github.com/loopd-dev/loopd/http1"
	"github.com/stretchr/testify/require"
)

func TestSerializeMinimal(t *testing.T) {
	resp := http.NewResponse(200, "OK").
		Header("Content-Type", "text/plain").
		SetBody([]byte("hi"))

	out := http1.Serialize(nil, resp, true)

	require.Equal(t,
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 2\r\n\r\nhi",
		string(out),
	)
}

func TestSerializeAddsConnectionClose(t *testing.T) {
	resp := http.NewResponse(200, "OK").SetBody([]byte("hi"))

	out := http1.Serialize(nil, resp, false)

	require.Contains(t, string(out), "Connection: close\r\n")
}

func TestSerializeRespectsExplicitConnectionHeader(t *testing.T) {
	resp := http.NewResponse(200, "OK").
		Header("Connection", "keep-alive").
		SetBody(nil)

	out := http1.Serialize(nil, resp, false)

	require.Contains(t, string(out), "Connection: keep-alive\r\n")
	require.NotContains(t, string(out), "Connection: close")
}

func TestSerializeChunked(t *testing.T) {
	resp := http.NewResponse(200, "OK").
		Header("Transfer-Encoding", "chunked").
		SetBody([]byte("hello world"))

	out := http1.Serialize(nil, resp, true)

	require.Equal(t,
		"HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\nb\r\nhello world\r\n0\r\n\r\n",
		string(out),
	)
}

func TestSerializeAppendsToExistingBuffer(t *testing.T) {
	buf := []byte("prefix:")
	resp := http.NewResponse(204, "No Content").SetBody(nil)

	out := http1.Serialize(buf, resp, true)

	require.Equal(t, "prefix:HTTP/1.1 204 No Content\r\nContent-Length: 0\r\n\r\n", string(out))
}
