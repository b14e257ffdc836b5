package utils

import (
	"fmt"
	"net/http"
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// HTTPStatus maps the error code family to a response status.
func (e *APIError) HTTPStatus() int {
	switch e.Code / 1000 {
	case 1:
		return http.StatusUnauthorized
	case 3:
		return http.StatusBadRequest
	case 4:
		return http.StatusNotFound
	case 5:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func NewAuthError(err error) *APIError {
	return &APIError{
		Code:    1001,
		Message: "authentication failed",
		Details: err.Error(),
	}
}

func NewDeployError(step string, err error) *APIError {
	return &APIError{
		Code:    2001,
		Message: fmt.Sprintf("deployment step %s failed", step),
		Details: err.Error(),
	}
}

func NewValidationError(field string, value interface{}) *APIError {
	return &APIError{
		Code:    3001,
		Message: fmt.Sprintf("invalid parameter: %s", field),
		Details: fmt.Sprintf("invalid value: %v", value),
	}
}

func NewRequestError(err error) *APIError {
	return &APIError{
		Code:    3002,
		Message: "invalid request payload",
		Details: err.Error(),
	}
}

func NewNotFoundError(what string) *APIError {
	return &APIError{
		Code:    4001,
		Message: fmt.Sprintf("%s not found", what),
	}
}

func NewSystemError(err error) *APIError {
	return &APIError{
		Code:    5001,
		Message: "internal error",
		Details: err.Error(),
	}
}
