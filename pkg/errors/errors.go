// ================== pkg/errors/errors.go =================
package errors

import (
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a failure so callers can choose a user-facing response
// without string matching.
type Kind string

const (
	KindUnknown            Kind = "UNKNOWN"
	KindNotFound           Kind = "NOT_FOUND"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindValidationRejected Kind = "VALIDATION_REJECTED"
	KindTransientIO        Kind = "TRANSIENT_IO"
	KindInternalInvariant  Kind = "INTERNAL_INVARIANT"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindUnauthorized       Kind = "UNAUTHORIZED"
)

type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Format prints the cause with its stack trace under %+v.
func (e *AppError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') && e.Cause != nil {
		fmt.Fprintf(s, "%s: %+v", e.Message, e.Cause)
		return
	}
	io.WriteString(s, e.Error())
}

// Is matches two AppErrors by code so wrapped sentinels still compare equal.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

func New(kind Kind, code, message string) error {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, cause error) error {
	return &AppError{Kind: kind, Code: code, Message: message, Cause: cause}
}

func NotFound(code, msg string) error {
	return New(KindNotFound, code, msg)
}

func PreconditionFailed(code, msg string) error {
	return New(KindPreconditionFailed, code, msg)
}

func ValidationRejected(code, msg string) error {
	return New(KindValidationRejected, code, msg)
}

func InvalidArg(code, msg string) error {
	return New(KindInvalidArgument, code, msg)
}

func Unauthorized(code, msg string) error {
	return New(KindUnauthorized, code, msg)
}

// Transient wraps a store or transport failure the caller may retry. The
// cause records where it was wrapped.
func Transient(message string, cause error) error {
	return Wrap(KindTransientIO, "TRANSIENT_IO", message, pkgerrors.WithStack(cause))
}

// Invariant reports a should-never-happen state. It is fatal to the operation.
func Invariant(message string) error {
	return New(KindInternalInvariant, "INTERNAL_INVARIANT", message)
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Re-exports so callers don't need two errors imports.
var (
	Is = errors.Is
	As = errors.As
)
