// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package errors defines the structured error taxonomy shared by the LADDR
// allocator and the quorum/health arbiter. Every fallible operation in the
// control plane returns (or wraps) an *Error so callers can switch on Kind
// instead of string-matching messages.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for dispatch by callers (e.g. mapping to a
// control-plane wire status).
type Kind int

const (
	KindUnknown Kind = iota
	KindInternal
	KindValidation
	KindNotFound
	KindPermission
	KindConflict
	KindUnavailable
	KindTimeout

	// KindInvalid marks a null/malformed argument or unparseable service match.
	KindInvalid
	// KindNoService marks a service lookup miss.
	KindNoService
	// KindNotSupported marks a protocol other than TCP/UDP for laddr ops.
	KindNotSupported
	// KindExist marks an idempotent add that found a duplicate.
	KindExist
	// KindNotExist marks an idempotent delete that found nothing.
	KindNotExist
	// KindBusy marks a laddr pinned by refcnt>0; the caller should retry.
	KindBusy
	// KindExhausted marks no free lport after the trial budget, or no laddr configured.
	KindExhausted
	// KindOOM marks an allocation failure.
	KindOOM
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindInvalid:
		return "invalid"
	case KindNoService:
		return "no_service"
	case KindNotSupported:
		return "not_supported"
	case KindExist:
		return "exist"
	case KindNotExist:
		return "not_exist"
	case KindBusy:
		return "busy"
	case KindExhausted:
		return "resource_exhausted"
	case KindOOM:
		return "oom"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind, a message, and optionally the
// underlying cause and free-form attributes (e.g. vs id, laddr).
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// WithAttr returns a copy of e with the given attribute attached.
func (e *Error) WithAttr(key string, value any) *Error {
	n := *e
	n.Attributes = make(map[string]any, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		n.Attributes[k] = v
	}
	n.Attributes[key] = value
	return &n
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf wraps an existing error as a new Error of the specified kind with a
// formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
