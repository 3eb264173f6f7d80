package conn

import (
	"errors"

	loopderr "github.com/loopd-dev/loopd/errors"
	"github.com/loopd-dev/loopd/http"
	"github.com/loopd-dev/loopd/http/status"
)

// errorResponse maps a fatal parser/connection error to the best-effort
// response written before the connection closes.
func errorResponse(err error) *http.Response {
	code, reason := status.BadRequest, "Bad Request"

	switch {
	case errors.Is(err, loopderr.ErrMethodNotImplemented):
		code, reason = status.NotImplemented, "Not Implemented"
	case errors.Is(err, loopderr.ErrUnsupportedProtocol):
		code, reason = status.HTTPVersionNotSupported, "HTTP Version Not Supported"
	case errors.Is(err, loopderr.ErrURITooLong):
		code, reason = status.RequestURITooLong, "Request-URI Too Long"
	case errors.Is(err, loopderr.ErrTooManyHeaders), errors.Is(err, loopderr.ErrHeaderLineTooLong):
		code, reason = status.RequestHeaderFieldsTooLarge, "Request Header Fields Too Large"
	case errors.Is(err, loopderr.ErrConflictingFraming), errors.Is(err, loopderr.ErrBadRequest):
		code, reason = status.BadRequest, "Bad Request"
	}

	return http.NewResponse(int(code), reason).Header("Connection", "close")
}
