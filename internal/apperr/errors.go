package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindUnconfigured    Kind = "unconfigured"
	KindTimeout         Kind = "timeout"
	KindUnreachable     Kind = "unreachable"
	KindRemoteRejected  Kind = "remote_rejected"
	KindNotFound        Kind = "not_found"
	KindBatchTooLarge   Kind = "batch_too_large"
	KindInvalidMessage  Kind = "invalid_message"
	KindInvalidArgument Kind = "invalid_argument"
	KindProvider        Kind = "provider_error"
	KindInternal        Kind = "internal"
)

// Error is the typed failure returned by the chat client, the importer and
// the provider layer. Status is the HTTP-equivalent status of the failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string

	// Index and Field locate an invalid element of an import batch.
	// Index is -1 when not applicable.
	Index int
	Field string

	// RemoteStatus and RemoteBody are set for KindRemoteRejected.
	RemoteStatus int
	RemoteBody   interface{}

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Index >= 0 && e.Field != "" {
		msg = fmt.Sprintf("%s (index %d, field %s)", msg, e.Index, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrUnconfigured   = &Error{Kind: KindUnconfigured, Index: -1}
	ErrTimeout        = &Error{Kind: KindTimeout, Index: -1}
	ErrUnreachable    = &Error{Kind: KindUnreachable, Index: -1}
	ErrRemoteRejected = &Error{Kind: KindRemoteRejected, Index: -1}
	ErrNotFound       = &Error{Kind: KindNotFound, Index: -1}
	ErrBatchTooLarge  = &Error{Kind: KindBatchTooLarge, Index: -1}
	ErrInvalidMessage = &Error{Kind: KindInvalidMessage, Index: -1}
	ErrProvider       = &Error{Kind: KindProvider, Index: -1}
)

// Unconfigured reports a missing credential or setting
func Unconfigured(msg string) *Error {
	return &Error{Kind: KindUnconfigured, Status: http.StatusInternalServerError, Message: msg, Index: -1}
}

// Timeout reports a call that exceeded its deadline
func Timeout(msg string, err error) *Error {
	return &Error{Kind: KindTimeout, Status: http.StatusGatewayTimeout, Message: msg, Index: -1, Err: err}
}

// Unreachable reports a transport failure
func Unreachable(msg string, err error) *Error {
	return &Error{Kind: KindUnreachable, Status: http.StatusBadGateway, Message: msg, Index: -1, Err: err}
}

// RemoteRejected reports a non-success status from a remote platform
func RemoteRejected(remoteStatus int, body interface{}) *Error {
	return &Error{
		Kind:         KindRemoteRejected,
		Status:       remoteStatus,
		Message:      fmt.Sprintf("remote rejected request with status %d", remoteStatus),
		Index:        -1,
		RemoteStatus: remoteStatus,
		RemoteBody:   body,
	}
}

// NotFound reports an unknown entity
func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: fmt.Sprintf("%s %q not found", what, id), Index: -1}
}

// BatchTooLarge reports an import batch above the cap
func BatchTooLarge(size, limit int) *Error {
	return &Error{
		Kind:    KindBatchTooLarge,
		Status:  http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("batch of %d messages exceeds the limit of %d", size, limit),
		Index:   -1,
	}
}

// InvalidMessage reports an invalid element of an import batch
func InvalidMessage(index int, field, reason string) *Error {
	return &Error{
		Kind:    KindInvalidMessage,
		Status:  http.StatusBadRequest,
		Message: "invalid message: " + reason,
		Index:   index,
		Field:   field,
	}
}

// InvalidArgument reports a bad caller-supplied argument
func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Status: http.StatusBadRequest, Message: msg, Index: -1}
}

// Provider wraps an AI provider failure
func Provider(provider string, err error) *Error {
	return &Error{
		Kind:    KindProvider,
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("provider %s failed", provider),
		Index:   -1,
		Err:     err,
	}
}

// As extracts the *Error from an error chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP-equivalent status of err
func StatusOf(err error) int {
	if e, ok := As(err); ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
