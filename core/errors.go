package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports input that was rejected before anything was persisted.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// NotFoundError is returned when the referenced entity does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func NewNotFoundError(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", err.Entity, err.Key)
}

// ConflictError is returned when a natural key is already taken,
// or when a record cannot change because other records still depend on it.
type ConflictError struct {
	Entity string
	Key    string
	Reason string // defaults to "already exists"
}

func NewConflictError(entity, key string) error {
	return &ConflictError{Entity: entity, Key: key}
}

func (err ConflictError) Error() string {
	reason := err.Reason
	if reason == "" {
		reason = "already exists"
	}
	return fmt.Sprintf("%s %q %s", err.Entity, err.Key, reason)
}

// PersistenceError wraps a storage failure.
// It does not implement Cause so that errors.Cause stops on it.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func (err PersistenceError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

func (err PersistenceError) Unwrap() error { return err.Err }

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsPersistence(err error) bool {
	_, ok := errors.Cause(err).(*PersistenceError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
