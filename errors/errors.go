// Package errors implements the error taxonomy of spec §7: a closed
// set of Kinds, one Error type wrapping a cause, and an Is helper for
// matching a Kind across a wrapped chain. Listeners never let a
// per-connection error escape past their own accept loop; the
// taxonomy labels the errors returned by config loading and by
// listener construction and start-up.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies which policy in spec §7's error table applies.
type Kind int

const (
	KindConfigInvalid Kind = iota
	KindBindFailed
	KindBadHandshake
	KindAuthFailed
	KindBadAddress
	KindBadDomain
	KindDecryptFail
	KindBadIV
	KindDialFailed
	KindIO
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindConfigInvalid:
		return "config_invalid"
	case KindBindFailed:
		return "bind_failed"
	case KindBadHandshake:
		return "bad_handshake"
	case KindAuthFailed:
		return "auth_failed"
	case KindBadAddress:
		return "bad_address"
	case KindBadDomain:
		return "bad_domain"
	case KindDecryptFail:
		return "decrypt_fail"
	case KindBadIV:
		return "bad_iv"
	case KindDialFailed:
		return "dial_failed"
	case KindIO:
		return "io_error"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a Kind to an HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindConfigInvalid, KindBadHandshake, KindBadAddress, KindBadDomain:
		return http.StatusBadRequest
	case KindAuthFailed:
		return http.StatusUnauthorized
	case KindBindFailed, KindDialFailed, KindIO:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a Kind plus a message and, usually, the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error with an explicit message.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Wrap builds an Error whose message is the Kind's own name, for call
// sites that have nothing more specific to say than "this failed in
// this way."
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: kind.String(), Err: err}
}

// Is reports whether err, or anything it wraps, is an *Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
