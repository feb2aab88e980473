package apperrors

import (
	"errors"
	"net/http"
)

// Kinds. Bounded contexts wrap these in their own sentinels so the HTTP layer
// can map any of them without importing every domain package.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrUnavailable = errors.New("dependency unavailable")
	ErrUpstream    = errors.New("upstream call failed")
)

func CheckError(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
