// Package apperrors defines the error categories surfaced by the feed and
// payment operations. Callers classify errors with errors.Is against the four
// category sentinels; the refined errors wrap exactly one category.
package apperrors

import (
	"errors"
	"fmt"
)

// Categories
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidState = errors.New("invalid state")
	ErrGateway      = errors.New("payment gateway error")
	ErrInvalidInput = errors.New("invalid input")
)

// Refined errors
var (
	ErrPostNotFound      = fmt.Errorf("%w: post", ErrNotFound)
	ErrPaymentNotFound   = fmt.Errorf("%w: payment", ErrNotFound)
	ErrNotPostAuthor     = fmt.Errorf("%w: caller is not the post author", ErrUnauthorized)
	ErrNotAuthorOrAdmin  = fmt.Errorf("%w: caller is neither the post author nor an admin", ErrUnauthorized)
	ErrAuthRequired      = fmt.Errorf("%w: authentication required", ErrUnauthorized)
	ErrPaymentNotOwned   = fmt.Errorf("%w: payment does not belong to caller", ErrUnauthorized)
	ErrSignatureMismatch = fmt.Errorf("%w: payment signature verification failed", ErrUnauthorized)
	ErrNotPremium        = fmt.Errorf("%w: post is not a premium post", ErrInvalidState)
	ErrAuthorPurchase    = fmt.Errorf("%w: authors cannot purchase their own post", ErrInvalidState)
	ErrAlreadyPaid       = fmt.Errorf("%w: post already purchased", ErrInvalidState)
	ErrPaymentFinalized  = fmt.Errorf("%w: payment already finalized", ErrInvalidState)
)

// Gateway wraps a payment provider failure so it classifies as ErrGateway
// while keeping the provider's error in the chain.
func Gateway(op string, err error) error {
	return &gatewayError{op: op, err: err}
}

type gatewayError struct {
	op  string
	err error
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrGateway, e.op, e.err)
}

func (e *gatewayError) Unwrap() []error {
	return []error{ErrGateway, e.err}
}

// Invalid returns an ErrInvalidInput error with the given message.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Kind returns the category sentinel err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrUnauthorized, ErrInvalidState, ErrGateway, ErrInvalidInput} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
