package upstream

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why the upstream stream could not be opened.
type ErrorKind string

const (
	KindCredential  ErrorKind = "credential"
	KindTransport   ErrorKind = "transport"
	KindStatus      ErrorKind = "status"
	KindContentType ErrorKind = "content_type"
	KindEncoding    ErrorKind = "encoding"
)

// ErrNoCredential is wrapped by the error returned when no API key is set.
var ErrNoCredential = errors.New("no upstream credential configured")

// Error is an upstream failure. The relay never shows it to end users; it
// switches to the simulated analysis instead.
type Error struct {
	Kind   ErrorKind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := "upstream " + string(e.Kind) + " error"
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
