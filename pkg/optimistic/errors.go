package optimistic

import (
	"errors"
	"fmt"
)

// ErrNoEndpoint is returned by committers that were not given an endpoint.
// The dispatch is rejected before any request is sent.
var ErrNoEndpoint = errors.New("optimistic: missing endpoint")

// ErrDuplicateSelector is returned when a selector is registered twice.
var ErrDuplicateSelector = errors.New("optimistic: selector already registered")

// ErrUnknownControl is returned when a control key has no state record.
var ErrUnknownControl = errors.New("optimistic: unknown control")

// ConfigError reports a missing endpoint or identifier. No request is sent.
type ConfigError struct {
	// What names the missing piece, e.g. "availability endpoint".
	What string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.What == "" {
		return "optimistic: configuration error"
	}
	return "Missing " + e.What
}

func (e *ConfigError) Unwrap() error {
	if e.Err == nil {
		return ErrNoEndpoint
	}
	return e.Err
}

// RejectedError is returned when the server answers with a non-2xx status.
type RejectedError struct {
	Status int

	// Message is the best-effort text extracted from the response body.
	// Empty when the body carried nothing usable.
	Message string

	// Location is set when the server redirected, typically to a login page.
	Location string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rejected (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("rejected (%d)", e.Status)
}

// Redirected reports whether the rejection was an auth redirect.
func (e *RejectedError) Redirected() bool {
	return e.Location != ""
}

// TransportError wraps a failure that prevented the request from completing.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Kind classifies a commit error.
type Kind int

const (
	KindNone Kind = iota
	KindConfig
	KindRejected
	KindTransport
)

// String returns a label suitable for logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfig:
		return "config"
	case KindRejected:
		return "rejected"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Classify maps a commit error onto the error taxonomy. Unknown errors are
// treated as transport failures.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var cfg *ConfigError
	if errors.As(err, &cfg) || errors.Is(err, ErrNoEndpoint) {
		return KindConfig
	}
	var rej *RejectedError
	if errors.As(err, &rej) {
		return KindRejected
	}
	return KindTransport
}
