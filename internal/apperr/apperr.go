// Package apperr defines the error kinds surfaced by the clipframe pipeline.
// Every user-visible failure carries a human-readable message, the raw
// diagnostic text of the failing tool (if any), and a retry hint.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindInvalidMedia  Kind = "invalid_media"
	KindProbe         Kind = "probe"
	KindTranscription Kind = "transcription"
	KindEncode        Kind = "encode"
	KindPermission    Kind = "permission"
	KindUnexpected    Kind = "unexpected"
)

// Error is the typed error returned across package boundaries.
type Error struct {
	Kind      Kind
	Message   string
	Detail    string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidMedia(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidMedia, Message: fmt.Sprintf(format, args...)}
}

// Probe wraps an ffprobe failure; detail is the tool's diagnostic output.
func Probe(message, detail string, err error) *Error {
	return &Error{Kind: KindProbe, Message: message, Detail: detail, Err: err}
}

func Transcription(message string, err error) *Error {
	return &Error{Kind: KindTranscription, Message: message, Err: err, Retryable: true}
}

// Encode wraps an encoder failure. Encodes are always worth retrying.
func Encode(message, detail string, err error) *Error {
	return &Error{Kind: KindEncode, Message: message, Detail: detail, Err: err, Retryable: true}
}

func Permission(message string, err error) *Error {
	return &Error{Kind: KindPermission, Message: message, Err: err}
}

func Unexpected(message string, err error) *Error {
	return &Error{Kind: KindUnexpected, Message: message, Err: err, Retryable: true}
}

// As returns the *Error in err's chain, or wraps err as unexpected.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Unexpected("an unexpected error occurred", err)
}

// KindOf reports the kind of err, KindUnexpected for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

func IsRetryable(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Retryable
}
