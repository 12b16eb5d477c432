package core

import (
	"errors"
	"fmt"
)

// ErrorKind names a failure category so callers can decide presentation.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindStorage      ErrorKind = "storage"
	KindNotFound     ErrorKind = "not_found"
	KindCatalog      ErrorKind = "catalog"
)

// Error is returned by every store and service operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and operation name. A nil err stays nil.
func E(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Cause returns the message of the underlying failure without operation prefixes.
func Cause(err error) string {
	var e *Error
	for errors.As(err, &e) {
		err = e.Err
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
