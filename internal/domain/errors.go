package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the recoverable outcomes of the pricing and lifecycle rules.
type ErrorKind string

const (
	KindInvalidSelection         ErrorKind = "invalid_selection"
	KindPromotionInvalid         ErrorKind = "promotion_invalid"
	KindPromotionExpired         ErrorKind = "promotion_expired"
	KindPromotionExhausted       ErrorKind = "promotion_exhausted"
	KindPromotionMinimumNotMet   ErrorKind = "promotion_minimum_not_met"
	KindPromotionAlreadyUsed     ErrorKind = "promotion_already_used"
	KindPromotionRestricted      ErrorKind = "promotion_restricted"
	KindPricingInvariantViolated ErrorKind = "pricing_invariant_violated"
	KindIllegalTransition        ErrorKind = "illegal_transition"
)

// Kind sentinels, usable with errors.Is against any *Error of the same kind.
var (
	ErrInvalidSelection         = &Error{Kind: KindInvalidSelection}
	ErrPromotionInvalid         = &Error{Kind: KindPromotionInvalid}
	ErrPromotionExpired         = &Error{Kind: KindPromotionExpired}
	ErrPromotionExhausted       = &Error{Kind: KindPromotionExhausted}
	ErrPromotionMinimumNotMet   = &Error{Kind: KindPromotionMinimumNotMet}
	ErrPromotionAlreadyUsed     = &Error{Kind: KindPromotionAlreadyUsed}
	ErrPromotionRestricted      = &Error{Kind: KindPromotionRestricted}
	ErrPricingInvariantViolated = &Error{Kind: KindPricingInvariantViolated}
	ErrIllegalTransition        = &Error{Kind: KindIllegalTransition}
)

// Store level errors returned by repositories.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrMenuItemNotFound  = errors.New("menu item not found")
	ErrConcurrentUpdate  = errors.New("order was modified concurrently")
)

// Raised by the store when a usage loses the last redemption to a concurrent checkout.
var (
	ErrUsageLimitReached   = &Error{Kind: KindPromotionExhausted, Field: "promotion_code", Message: "promotion reached its usage limit"}
	ErrPerUserLimitReached = &Error{Kind: KindPromotionAlreadyUsed, Field: "promotion_code", Message: "promotion was already used the allowed number of times"}
)

// Error carries the kind plus enough context to render a message to the user.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return string(e.Kind)
	}
}

// Is matches on kind so callers can test against the package sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a domain error anywhere in the chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsPromotionError reports whether err is one of the promotion rejection kinds.
func IsPromotionError(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindPromotionInvalid, KindPromotionExpired, KindPromotionExhausted,
		KindPromotionMinimumNotMet, KindPromotionAlreadyUsed, KindPromotionRestricted:
		return true
	}
	return false
}
