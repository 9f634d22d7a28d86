// Package apierr normalises every failure the client can observe into one
// taxonomy. The gateway turns what it saw on the wire into a Raw value and
// Normalize collapses that into an *Error; no other package inspects raw
// failure shapes.
package apierr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a normalised failure.
type Kind string

const (
	NetworkFailure    Kind = "NetworkFailure"
	ValidationFailure Kind = "ValidationFailure"
	ServerFailure     Kind = "ServerFailure"
	AuthFailure       Kind = "AuthFailure"
	NotFound          Kind = "NotFound"
)

var defaultMessages = map[Kind]string{
	NetworkFailure:    "Unable to reach the calendar service",
	ValidationFailure: "The request was rejected as invalid",
	ServerFailure:     "The calendar service could not complete the request",
	AuthFailure:       "Your session has expired, please sign in again",
	NotFound:          "The requested record was not found",
}

// DefaultMessage returns the fallback message used when a failure carries none.
func DefaultMessage(k Kind) string {
	if m, ok := defaultMessages[k]; ok {
		return m
	}
	return defaultMessages[ServerFailure]
}

// Error is the normalised failure handed to callers. Message is always a
// single human readable string.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string // offending field names, ValidationFailure only
	Status  int      // HTTP status, zero when no response was received
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an Error of kind k, falling back to the kind's default message.
func New(k Kind, message string, fields ...string) *Error {
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage(k)
	}
	return &Error{Kind: k, Message: message, Fields: fields}
}

// Validation builds a local ValidationFailure for a single field.
func Validation(field, message string) *Error {
	return New(ValidationFailure, message, field)
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or ServerFailure for errors that never went
// through Normalize. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if apiErr, ok := As(err); ok {
		return apiErr.Kind
	}
	return ServerFailure
}

// IsKind reports whether err normalises to k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Wrap normalises an arbitrary error that escaped the gateway, keeping it as
// the cause.
func Wrap(err error, k Kind, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	if apiErr, ok := As(err); ok {
		return apiErr
	}
	e := New(k, fmt.Sprintf(format, args...))
	e.cause = err
	return e
}
