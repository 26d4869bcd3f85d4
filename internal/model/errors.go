package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error returned by the store.
type ErrorKind string

// Error kinds.
const (
	KindNotFound            ErrorKind = "not_found"
	KindInvalid             ErrorKind = "invalid"
	KindConflict            ErrorKind = "conflict"
	KindNotAuthorized       ErrorKind = "not_authorized"
	KindInvalidTransition   ErrorKind = "invalid_transition"
	KindItemUnavailable     ErrorKind = "item_unavailable"
	KindInsufficientPoints  ErrorKind = "insufficient_points"
	KindInvalidOfferedItems ErrorKind = "invalid_offered_items"
	KindSelfSwap            ErrorKind = "self_swap"
	KindItemHasActiveSwap   ErrorKind = "item_has_active_swap"
	KindSettlementFailed    ErrorKind = "settlement_failed"
	KindBalanceOverflow     ErrorKind = "balance_overflow"
)

// Error is a typed domain error. Two errors match under errors.Is when their
// kinds are equal, so callers compare against the sentinels below.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

// Is reports whether target is a *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrInvalid             = &Error{Kind: KindInvalid, Msg: "invalid input"}
	ErrConflict            = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrNotAuthorized       = &Error{Kind: KindNotAuthorized, Msg: "not authorized"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, Msg: "invalid status transition"}
	ErrItemUnavailable     = &Error{Kind: KindItemUnavailable, Msg: "item unavailable"}
	ErrInsufficientPoints  = &Error{Kind: KindInsufficientPoints, Msg: "insufficient points"}
	ErrInvalidOfferedItems = &Error{Kind: KindInvalidOfferedItems, Msg: "invalid offered items"}
	ErrSelfSwap            = &Error{Kind: KindSelfSwap, Msg: "cannot swap for your own item"}
	ErrItemHasActiveSwap   = &Error{Kind: KindItemHasActiveSwap, Msg: "item has an active swap"}
	ErrSettlementFailed    = &Error{Kind: KindSettlementFailed, Msg: "settlement failed"}
	ErrBalanceOverflow     = &Error{Kind: KindBalanceOverflow, Msg: "balance overflow"}

	// ErrNotOwner is a NotAuthorized error for owner-only swap transitions.
	ErrNotOwner = &Error{Kind: KindNotAuthorized, Msg: "only the item owner can do this"}
)

// Errorf returns a domain error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a domain error, or "" for any other error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the failed call may succeed if repeated unchanged.
func IsRetryable(err error) bool {
	return KindOf(err) == KindSettlementFailed
}
