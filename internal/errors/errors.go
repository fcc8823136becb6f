// Package errors classifies failures with string codes on top of
// github.com/pkg/errors, which records the stack at the wrap site.
package errors

import (
	stderrors "errors"

	pkgerrors "github.com/pkg/errors"
)

// Code is both a sentinel and a classification, errors.Is(err, code)
// matches any coded error carrying it.
type Code string

func (c Code) Error() string { return string(c) }

type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	code, ok := target.(Code)
	return ok && code == e.Code
}

func coded(code Code, err error) error {
	return &Error{Code: code, Err: err}
}

func New(code Code, message string) error {
	return coded(code, pkgerrors.New(message))
}

func Newf(code Code, format string, args ...any) error {
	return coded(code, pkgerrors.Errorf(format, args...))
}

// Wrap returns nil for a nil err.
func Wrap(code Code, err error, message string) error {
	if err == nil {
		return nil
	}
	return coded(code, pkgerrors.Wrap(err, message))
}

// Wrapf returns nil for a nil err.
func Wrapf(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return coded(code, pkgerrors.Wrapf(err, format, args...))
}

// Join returns nil when every err is nil.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As[T error](err error) (*T, bool) {
	var target T
	if !stderrors.As(err, &target) {
		return nil, false
	}
	return &target, true
}

// CodeOf returns the outermost code in the chain.
func CodeOf(err error) (Code, bool) {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code, true
		case Code:
			return e, true
		}
		err = stderrors.Unwrap(err)
	}
	return "", false
}
