// Package apierr defines the failure categories shared by the fetch and
// collection layers.
package apierr

import (
	"errors"
	"fmt"
)

// Tag names a failure category.
type Tag string

const (
	// TagConnection marks a transport or network failure reaching the service.
	TagConnection Tag = "ConnectionError"

	// TagAPI marks a reachable service that rejected the request.
	TagAPI Tag = "APIError"

	// TagNoResults marks a query for which the service reports zero pages.
	TagNoResults Tag = "NoResultsError"

	// TagInput marks a malformed record handed to the flattener.
	TagInput Tag = "InputError"
)

// Sentinels for errors.Is. They match any *Error carrying the same tag.
var (
	ErrConnection = &Error{Tag: TagConnection}
	ErrAPI        = &Error{Tag: TagAPI}
	ErrNoResults  = &Error{Tag: TagNoResults}
	ErrInput      = &Error{Tag: TagInput}
)

// Error is a tagged failure with an optional message and cause.
type Error struct {
	Tag     Tag
	Message string
	Err     error
}

// New returns a tagged error.
func New(tag Tag, message string, err error) *Error {
	return &Error{Tag: tag, Message: message, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Tag, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Tag, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Tag, e.Err)
	default:
		return string(e.Tag)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same tag.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Tag == e.Tag
}

// TagOf returns the tag of the first *Error in err's chain, or "" if none.
func TagOf(err error) Tag {
	var e *Error
	if errors.As(err, &e) {
		return e.Tag
	}
	return ""
}
