package api

import (
	"errors"
	"fmt"

	"github.com/quillhq/quillfeed/internal/api/request"
	"github.com/quillhq/quillfeed/internal/apperrors"
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
	Data    string
}

// NewError creates a new API error
func NewError(code int, message, data string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// FromError maps a method error to its JSON-RPC error. Errors outside the
// application categories are reported without detail.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var paramsErr *request.ParamsError
	if errors.As(err, &paramsErr) {
		return NewError(ErrInvalidParams, "Invalid params", paramsErr.Message)
	}

	switch apperrors.Kind(err) {
	case apperrors.ErrInvalidInput:
		return NewError(ErrInvalidParams, "Invalid params", err.Error())
	case apperrors.ErrNotFound:
		return NewError(ErrNotFound, "Not found", err.Error())
	case apperrors.ErrUnauthorized:
		return NewError(ErrUnauthorized, "Unauthorized", err.Error())
	case apperrors.ErrInvalidState:
		return NewError(ErrInvalidState, "Invalid state", err.Error())
	case apperrors.ErrGateway:
		return NewError(ErrGatewayFailure, "Payment gateway error", err.Error())
	default:
		return NewError(ErrServerError, "Server error", "internal error")
	}
}
