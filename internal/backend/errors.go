package backend

import (
	"errors"
	"fmt"
)

// TransportError wraps a network-level failure (unreachable host, timeout,
// malformed response). Optimistic state is always rolled back; the user sees
// a generic message, never the underlying error text.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError is a structured server rejection of a payload. Message is
// surfaced to the user verbatim when present.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "server rejected the request"
	}
	return e.Message
}

// AuthError indicates an expired or invalid session. Never retried
// automatically: resubmitting against a permanently-expired session would
// loop forever. Callers prompt for re-authentication instead.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "not authorized"
	}
	return e.Reason
}

// IsTransport reports whether err is (or wraps) a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsValidation reports whether err is (or wraps) a server validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuth reports whether err is (or wraps) an authorization failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// UserMessage converts a backend error into the text shown to the user,
// applying the taxonomy: validation messages verbatim, auth errors prompt
// re-authentication, everything else degrades to a generic message.
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Message != "" {
		return ve.Message
	}
	if IsAuth(err) {
		return "Your session has expired. Please sign in again."
	}
	return "Something went wrong. Please try again."
}
