package market

import (
	"errors"
	"fmt"
)

// Kind is a stable error code surfaced to callers so the UI can render
// actionable messages instead of generic failures.
type Kind string

const (
	KindNotFound               Kind = "NOT_FOUND"
	KindForbidden              Kind = "FORBIDDEN"
	KindInvalidTransition      Kind = "INVALID_TRANSITION"
	KindResourceUnavailable    Kind = "RESOURCE_UNAVAILABLE"
	KindInvalidQuantity        Kind = "INVALID_QUANTITY"
	KindInvalidDateRange       Kind = "INVALID_DATE_RANGE"
	KindInvalidRentalDuration  Kind = "INVALID_RENTAL_DURATION"
	KindAmountMismatch         Kind = "AMOUNT_MISMATCH"
	KindMissingDeliveryAddress Kind = "MISSING_DELIVERY_ADDRESS"
	KindEmptyContent           Kind = "EMPTY_CONTENT"
	KindStorage                Kind = "STORAGE"
)

type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	case e.msg != "":
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.kind, e.err)
	}
	return string(e.kind)
}

func (e *Error) Kind() Kind    { return e.kind }
func (e *Error) Unwrap() error { return e.err }

func E(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Storage wraps a store-layer failure (connectivity, constraint violation).
// These are transient from the caller's point of view and safe to retry.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: KindStorage, err: err}
}

// Code extracts the error kind, or "" for errors outside the taxonomy.
func Code(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return ""
}

func IsKind(err error, k Kind) bool { return Code(err) == k }
