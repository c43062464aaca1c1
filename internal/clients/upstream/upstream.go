// Package upstream holds the error type shared by the outbound service clients.
package upstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

// Error describes a failed call to an external service.
type Error struct {
	Service string
	Op      string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Op, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s %s: status %d", e.Service, e.Op, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an Error for a transport or decoding failure.
func Wrap(service, op string, err error) *Error {
	return &Error{Service: service, Op: op, Err: err}
}

// FromResponse builds an Error for a non-2xx response, keeping a bounded
// excerpt of the body. The caller still owns resp.Body.
func FromResponse(service, op string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &Error{
		Service: service,
		Op:      op,
		Status:  resp.StatusCode,
		Body:    strings.TrimSpace(string(body)),
	}
}

// Is reports whether err came from an external service.
func Is(err error) bool {
	var ue *Error
	return errors.As(err, &ue)
}

// OK reports whether status is a 2xx code.
func OK(status int) bool {
	return status >= 200 && status < 300
}
