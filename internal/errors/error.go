package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/royals-league/rally/pkg/optimistic"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryCommit   Category = "commit"
	CategoryProtocol Category = "protocol"
	CategoryCLI      Category = "cli"
)

// RallyError is a structured error with an explanation, a suggestion, and
// documentation.
type RallyError struct {
	// Code is a unique error identifier (e.g., "R101").
	Code string

	// Category is the error type (config, commit, ...).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *RallyError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *RallyError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *RallyError) WithSuggestion(s string) *RallyError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *RallyError) WithDetail(d string) *RallyError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *RallyError) Wrap(err error) *RallyError {
	e.Wrapped = err
	return e
}

// New creates a RallyError from a registered error code.
func New(code string) *RallyError {
	template, ok := registry[code]
	if !ok {
		return &RallyError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &RallyError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new RallyError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *RallyError {
	return &RallyError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a RallyError.
func FromError(err error, code string) *RallyError {
	if err == nil {
		return nil
	}
	var re *RallyError
	if stderrors.As(err, &re) {
		return re
	}
	return New(code).Wrap(err)
}

// FromCommit maps a commit error onto its registered code. The server's
// message, when there is one, becomes the detail.
func FromCommit(err error) *RallyError {
	if err == nil {
		return nil
	}
	var rej *optimistic.RejectedError
	switch {
	case stderrors.As(err, &rej):
		switch {
		case rej.Redirected():
			return New("R103").Wrap(err).WithDetail("Redirected to " + rej.Location)
		case rej.Status == 429:
			re := New("R104").Wrap(err)
			if rej.Message != "" {
				re.Detail = rej.Message
			}
			return re
		}
		re := New("R102").Wrap(err)
		if rej.Message != "" {
			re.Detail = rej.Message
		} else {
			re.Detail = fmt.Sprintf("The server answered %d.", rej.Status)
		}
		return re
	case optimistic.Classify(err) == optimistic.KindConfig:
		return New("R101").Wrap(err).WithDetail(err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return New("R106").Wrap(err)
	}
	return New("R105").Wrap(err)
}
