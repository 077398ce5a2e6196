package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error describes a failed call to the remote service: either the request never
// produced a response (Err set, StatusCode zero) or the service answered with a
// non-2xx status.
type Error struct {
	Operation     string
	StatusCode    int
	ServerMessage string
	Err           error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Operation)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.ServerMessage != "" {
		fmt.Fprintf(&b, ": %s", e.ServerMessage)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the service-provided message, or fallback when there is none.
func (e *Error) Message(fallback string) string {
	if e.ServerMessage != "" {
		return e.ServerMessage
	}
	return fallback
}

// HTTPStatus maps the failure onto a status for the console's own responses:
// upstream 4xx are passed through, everything else is a bad gateway.
func (e *Error) HTTPStatus() int {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

// MessageOf extracts a user-facing message from err: the server's message field
// for transport failures, fallback otherwise.
func MessageOf(err error, fallback string) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Message(fallback)
	}
	return fallback
}
