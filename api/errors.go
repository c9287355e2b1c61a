// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-echo.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrExecutorClosed    = errors.New("executor is closed")
	ErrQueueFull         = errors.New("task queue is full")
	ErrWouldBlock        = errors.New("operation would block")
	ErrAlreadyRegistered = errors.New("descriptor already registered")
	ErrNotRegistered     = errors.New("descriptor not registered")
	ErrMultiplexerClosed = errors.New("multiplexer is closed")
	ErrConnClosed        = errors.New("connection is closed")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrNotSupported      = errors.New("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeNotSupported
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeClosed
	ErrCodeInternal
)

// sentinel maps a code onto the package-level error that errors.Is should match.
func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeResourceExhausted:
		return ErrResourceExhausted
	case ErrCodeNotSupported:
		return ErrNotSupported
	case ErrCodeAlreadyExists:
		return ErrAlreadyRegistered
	case ErrCodeNotFound:
		return ErrNotRegistered
	case ErrCodeClosed:
		return ErrConnClosed
	default:
		return nil
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap lets errors.Is match the sentinel behind the code.
func (e *Error) Unwrap() error {
	return e.Code.sentinel()
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
