// Package envelope classifies failures into a closed set of kinds and wraps
// every response, successful or not, in the same success/data/message shape.
package envelope

import (
	"errors"
	"fmt"
)

// Kind is the closed classification of failure causes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindInternal:
		return "internal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Msg is safe to show to callers only for
// KindValidation; Err is the cause and is only ever logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg == e.Err.Error():
		return e.Kind.String() + ": " + e.Msg
	case e.Msg != "" && e.Err != nil:
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports a caller-fixable input problem; msg names the violated
// constraint and is echoed back.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// ValidationErr classifies err as a validation failure, echoing its text.
func ValidationErr(err error) *Error {
	return &Error{Kind: KindValidation, Msg: err.Error(), Err: err}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal
// for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

const (
	MsgNotFound = "resource not found"
	MsgStorage  = "storage error"
	MsgInternal = "internal server error"
)

// PublicMessage is the text a caller may see for err.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return MsgInternal
	}
	switch e.Kind {
	case KindValidation:
		if e.Msg == "" {
			return "invalid request"
		}
		return e.Msg
	case KindNotFound:
		return MsgNotFound
	case KindStorage:
		return MsgStorage
	}
	return MsgInternal
}
