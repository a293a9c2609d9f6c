package services

import (
	"errors"
	"net/http"

	vibelink_errors "vibelink/pkg/errors"
)

// HTTPStatus maps a service error to the status code handlers return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, vibelink_errors.ErrInvalidInput), errors.Is(err, ErrInvalidReplyTo):
		return http.StatusBadRequest
	case errors.Is(err, vibelink_errors.ErrUnauthorized), errors.Is(err, vibelink_errors.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, vibelink_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, vibelink_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vibelink_errors.ErrAlreadyExists), errors.Is(err, vibelink_errors.ErrConflict), errors.Is(err, vibelink_errors.ErrCallInProgress):
		return http.StatusConflict
	case errors.Is(err, vibelink_errors.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, vibelink_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
