package http_test

import (
	"testing"

	"github.com/loopd-dev/loopd/http"
	"github.com/stretchr/testify/require"
)

func TestResponseBuilder(t *testing.T) {
	resp := http.NewResponse(201, "Created").
		Header("Content-Type", "application/json").
		SetBody([]byte(`{"ok":true}`))

	require.Equal(t, 201, resp.Code)
	require.Equal(t, "Created", resp.Reason)
	require.Equal(t, "application/json", resp.Headers.Value("Content-Type"))
	require.Equal(t, `{"ok":true}`, string(resp.Body))
}

func TestStringResponse(t *testing.T) {
	resp := http.String("hi")

	require.Equal(t, 200, resp.Code)
	require.Equal(t, "hi", string(resp.Body))
	require.True(t, resp.Headers.Has("Content-Type"))
}
