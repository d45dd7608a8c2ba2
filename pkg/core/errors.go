package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrIO                = errors.New("io failure")
	ErrParse             = errors.New("parse failure")
	ErrLockConflict      = errors.New("lock held by another session")
	ErrVersionNotFound   = errors.New("version not found")
	ErrHandoffNotFound   = errors.New("handoff not found")
	ErrInvalidTransition = errors.New("invalid handoff status transition")
	ErrUnknownType       = errors.New("unknown context type")
)

// PathError ties a failure kind to the affected document and file.
type PathError struct {
	Kind        error
	ContextType ContextType
	Path        string
	Err         error
}

func (e *PathError) Error() string {
	msg := e.Kind.Error()
	if e.ContextType != "" {
		msg += " [" + string(e.ContextType) + "]"
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *PathError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IOError wraps err as an ErrIO for the given type and path.
func IOError(t ContextType, path string, err error) error {
	return &PathError{Kind: ErrIO, ContextType: t, Path: path, Err: err}
}

// ParseError wraps err as an ErrParse for the given type.
func ParseError(t ContextType, err error) error {
	return &PathError{Kind: ErrParse, ContextType: t, Err: err}
}

// VersionNotFound reports a missing rollback target.
func VersionNotFound(t ContextType, id string) error {
	return &PathError{Kind: ErrVersionNotFound, ContextType: t, Err: fmt.Errorf("no version %q", id)}
}
