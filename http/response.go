package http

import "github.com/loopd-dev/loopd/kv"

// Response is the value a Handler produces for a Request. The
// serializer treats it as read-only: it never mutates Code, Reason,
// Headers or Body, and only adds headers to its own on-wire copy when
// they're absent from Headers.
type Response struct {
	Code    int
	Reason  string
	Headers *kv.Storage
	Body    []byte
}

// NewResponse returns a Response with the given status and an empty
// header set, ready for chaining via Header/SetBody.
func NewResponse(code int, reason string) *Response {
	return &Response{
		Code:    code,
		Reason:  reason,
		Headers: kv.New(),
	}
}

// Header appends a header field and returns the Response for chaining.
func (r *Response) Header(name, value string) *Response {
	r.Headers.Add(name, value)
	return r
}

// SetBody sets the response body and returns the Response for chaining.
func (r *Response) SetBody(body []byte) *Response {
	r.Body = body
	return r
}

// String is a convenience constructor for a 200 OK text/plain response.
func String(body string) *Response {
	return NewResponse(200, "OK").
		Header("Content-Type", "text/plain; charset=utf-8").
		SetBody([]byte(body))
}
