package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the cluster review service.
type ErrorKind string

const (
	// KindInvalidArgument marks a request rejected before any data access.
	KindInvalidArgument ErrorKind = "invalid_argument"
	// KindDataSource marks a failure of the underlying data fetch.
	KindDataSource ErrorKind = "data_source"
	// KindNotFound marks a lookup of a record that does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindInternal is reported for errors that carry no kind.
	KindInternal ErrorKind = "internal"
)

// Error is the typed failure returned across the service boundary.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrDataSource      = &Error{Kind: KindDataSource}
	ErrNotFound        = &Error{Kind: KindNotFound}
)

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Message: fmt.Sprintf(format, args...)}
}

// DataSourceFailure wraps a data fetch failure.
func DataSourceFailure(op string, err error) *Error {
	return &Error{Kind: KindDataSource, Op: op, Message: "data source unavailable", Err: err}
}

// NotFound builds a KindNotFound error for the named entity.
func NotFound(op, entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// KindOf reports the kind of err. Errors without a kind are KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindInternal
}
