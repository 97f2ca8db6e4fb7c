// Package errors provides structured error types for sceneweaver.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the preview server and library callers
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes are grouped by the kind of failure:
//   - VALIDATION, UNKNOWN_TYPE, DUPLICATE_ID, INVALID_GROUP: spec defects the user can fix
//   - NOT_FOUND, TEMPLATE_NOT_FOUND, SCENE_NOT_FOUND: missing assets, templates or scene ids
//   - RESOLUTION_FAILED: no duration could be determined for a scene
//   - RENDER_FAILED, INTERNAL: failures of collaborators or unexpected states
//
// None of these are retried. A run either validates and renders completely or
// fails before any output is written.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeValidation, "scene %q: missing required field %q", id, "image")
//	if errors.Is(err, errors.ErrCodeValidation) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNotFound, origErr, "scene %q: image %s", id, path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Spec validation errors
	ErrCodeValidation   Code = "VALIDATION"
	ErrCodeUnknownType  Code = "UNKNOWN_TYPE"
	ErrCodeDuplicateID  Code = "DUPLICATE_ID"
	ErrCodeInvalidGroup Code = "INVALID_GROUP"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeTemplateNotFound Code = "TEMPLATE_NOT_FOUND"
	ErrCodeSceneNotFound    Code = "SCENE_NOT_FOUND"

	// Timeline errors
	ErrCodeResolution Code = "RESOLUTION_FAILED"

	// Collaborator and internal errors
	ErrCodeRender   Code = "RENDER_FAILED"
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + UserMessage(e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// IsUserError reports whether err is a defect in the user's input rather than
// a failure of the tool. The CLI uses this to decide whether to print usage hints.
func IsUserError(err error) bool {
	switch GetCode(err) {
	case ErrCodeValidation, ErrCodeUnknownType, ErrCodeDuplicateID, ErrCodeInvalidGroup,
		ErrCodeInvalidPath, ErrCodeNotFound, ErrCodeTemplateNotFound, ErrCodeSceneNotFound,
		ErrCodeResolution:
		return true
	}
	return false
}
