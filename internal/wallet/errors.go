package wallet

import (
	"errors"
	"fmt"
)

// ErrKind classifies wallet failures so callers can map them to a stable
// surface (RPC error codes, CLI exit messages) without string matching.
type ErrKind int

const (
	// ErrKindAuth covers wrong-PIN and undecryptable key material.
	ErrKindAuth ErrKind = iota + 1
	// ErrKindDangerous marks payloads refused on safety grounds, such as
	// raw signing of bytes that parse as a transaction.
	ErrKindDangerous
	// ErrKindMalformed covers invalid requests and payloads.
	ErrKindMalformed
	// ErrKindBroadcast covers transaction submission failures.
	ErrKindBroadcast
	// ErrKindNotFound covers missing wallets, keys, and accounts.
	ErrKindNotFound
)

// Error is a wallet failure tagged with a kind. The underlying cause, if
// any, is reachable through errors.Unwrap.
type Error struct {
	Kind ErrKind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// newError creates a tagged error with no underlying cause.
func newError(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// wrapError tags an underlying error with a kind and context.
func wrapError(kind ErrKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf returns the kind of err, or zero if err carries no kind.
func KindOf(err error) ErrKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return 0
}

// IsAuthFailure reports whether err is a PIN or decryption failure.
func IsAuthFailure(err error) bool {
	return KindOf(err) == ErrKindAuth
}

// IsDangerous reports whether err is a safety refusal.
func IsDangerous(err error) bool {
	return KindOf(err) == ErrKindDangerous
}
