package client

import (
	"errors"
	"fmt"
)

// Kind tags how a request failed.
type Kind int

const (
	// NetworkError means no response was received.
	NetworkError Kind = iota + 1
	// ServerError means the server answered with a non-2xx status.
	ServerError
	// DecodeError means a 2xx response body could not be decoded.
	DecodeError
)

func (k Kind) String() string {
	switch k {
	case NetworkError:
		return "network error"
	case ServerError:
		return "server error"
	case DecodeError:
		return "decode error"
	default:
		return "unknown error"
	}
}

// RequestError is the failed outcome of a request. Detail is best-effort
// text suitable for display.
type RequestError struct {
	Kind       Kind
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Detail extracts the display text of err. Non-RequestErrors yield err.Error().
func Detail(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func IsNetworkError(err error) bool {
	return kindOf(err) == NetworkError
}

func IsServerError(err error) bool {
	return kindOf(err) == ServerError
}

// StatusCode returns the HTTP status of a ServerError, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

func kindOf(err error) Kind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return 0
}
