package protocol

import (
	"errors"
	"fmt"
)

// Failure kinds. Every *Error unwraps to exactly one of these, so callers
// classify a parse failure with errors.Is. Transport errors (io.EOF,
// io.ErrUnexpectedEOF, net errors) are never wrapped into a kind.
var (
	ErrStatusLineTooLong = errors.New("status line too long")
	ErrUnsupportedMethod = errors.New("malformed or unsupported method")
	ErrURITooLong        = errors.New("uri too long")
	ErrMalformedInput    = errors.New("malformed input")
	ErrHeadersTooLarge   = errors.New("headers too large")
	ErrBodyTooLarge      = errors.New("body too large")
)

// Error is a typed parse failure with a human-readable diagnostic.
type Error struct {
	Kind   error
	Msg    string
	Excess int // bytes over the limit, set for ErrURITooLong
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Malformed is shorthand for Errorf(ErrMalformedInput, ...).
func Malformed(format string, args ...any) *Error {
	return Errorf(ErrMalformedInput, format, args...)
}

// URITooLong reports a request URI that is excess bytes over the limit.
func URITooLong(excess int) *Error {
	return &Error{
		Kind:   ErrURITooLong,
		Msg:    fmt.Sprintf("uri length exceeded max length with %d characters", excess),
		Excess: excess,
	}
}

// IsParseFailure reports whether err is one of the typed failure kinds,
// as opposed to a transport error.
func IsParseFailure(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
