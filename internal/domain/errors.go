package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for user-facing handling.
type ErrorKind string

const (
	KindInputValidation    ErrorKind = "input_validation"
	KindInvalidFileType    ErrorKind = "invalid_file_type"
	KindNoFileSelected     ErrorKind = "no_file_selected"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindAlreadyExists      ErrorKind = "already_exists"
	KindValidation         ErrorKind = "validation"
	KindAuthRequired       ErrorKind = "auth_required"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindNoSummary          ErrorKind = "no_summary"
	KindBadRequest         ErrorKind = "bad_request"
	KindFileTooLarge       ErrorKind = "file_too_large"
	KindServerBusy         ErrorKind = "server_busy"
	KindUnreachable        ErrorKind = "unreachable"
	KindInvalidPayload     ErrorKind = "invalid_payload"
	KindUnknown            ErrorKind = "unknown"
)

// Soft reports whether the backend may have accepted work despite the failure.
func (k ErrorKind) Soft() bool {
	return k == KindServerBusy || k == KindUnreachable
}

// Error is a classified failure carrying the message shown to the user.
type Error struct {
	Kind    ErrorKind         `json:"kind"`
	Message string            `json:"message"`
	Status  int               `json:"status,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

// NewError builds a classified error without an HTTP status.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Error formats classified failures for logs.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the classification of err, or KindUnknown when err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
