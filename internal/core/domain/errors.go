package domain

import "errors"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCoordinate is returned by distance math on NaN, infinite or out-of-range input.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrTooManyValues is returned by stores when an IN query exceeds the platform limit.
	ErrTooManyValues = errors.New("too many values for in query")

	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is returned for a missing, expired or malformed credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput marks caller mistakes that map to 400 responses.
	ErrInvalidInput = errors.New("invalid input")
)
