/**
 * @description
 * Typed error taxonomy for the RPC action surface. Every failure an action can
 * produce is one of these kinds; the transport layer maps kinds to HTTP status
 * codes and the callers decide retry behaviour from the kind alone:
 *
 *   - InvalidRequest: the action is not applicable to the transaction's current
 *     (kind, status, protocol). Never retried.
 *   - InvalidParams:  malformed or contradictory request fields. Never retried
 *     without correction.
 *   - BadRequest:     semantically invalid individual values. Never retried
 *     without correction.
 *   - NotFound:       referenced transaction does not exist.
 *   - InternalError:  an external dependency failed during an otherwise valid
 *     transition; no partial state was committed, safe to retry.
 */

package rpc

import "errors"

// ErrorKind discriminates the RPC error taxonomy.
type ErrorKind int

const (
	KindInvalidRequest ErrorKind = iota
	KindInvalidParams
	KindBadRequest
	KindNotFound
	KindInternalError
)

// Error is the error type surfaced by the dispatcher and handlers.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// NewInvalidRequest reports an action not applicable to the transaction state.
func NewInvalidRequest(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg}
}

// NewInvalidParams reports malformed or contradictory request fields.
func NewInvalidParams(msg string) *Error {
	return &Error{Kind: KindInvalidParams, Message: msg}
}

// NewBadRequest reports a semantically invalid individual value.
func NewBadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

// NewNotFound reports a missing transaction.
func NewNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// NewInternalError reports an external-dependency failure with its cause.
func NewInternalError(msg string, cause error) *Error {
	return &Error{Kind: KindInternalError, Message: msg, cause: cause}
}

// KindOf extracts the taxonomy kind from an error chain. Unclassified errors
// are treated as internal.
func KindOf(err error) ErrorKind {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	return KindInternalError
}
