package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	providerErr := errors.New("connection reset")

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"post not found", ErrPostNotFound, ErrNotFound},
		{"payment not found wrapped", fmt.Errorf("verify: %w", ErrPaymentNotFound), ErrNotFound},
		{"signature mismatch", ErrSignatureMismatch, ErrUnauthorized},
		{"ownership mismatch", ErrPaymentNotOwned, ErrUnauthorized},
		{"duplicate purchase", ErrAlreadyPaid, ErrInvalidState},
		{"author purchase", ErrAuthorPurchase, ErrInvalidState},
		{"gateway", Gateway("create order", providerErr), ErrGateway},
		{"invalid input", Invalid("title is required"), ErrInvalidInput},
		{"unclassified", providerErr, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.expected {
				t.Errorf("Kind(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestGatewayKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := Gateway("create order", cause)
	if !errors.Is(err, cause) {
		t.Error("Gateway error should wrap the provider error")
	}
	if !errors.Is(err, ErrGateway) {
		t.Error("Gateway error should classify as ErrGateway")
	}
}

func TestRefinedErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrSignatureMismatch, ErrPaymentNotOwned) {
		t.Error("signature mismatch and ownership mismatch must be distinguishable")
	}
	if errors.Is(ErrPaymentNotFound, ErrPostNotFound) {
		t.Error("payment and post not found must be distinguishable")
	}
}
