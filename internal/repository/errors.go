package repository

import "errors"

// Repository errors
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the backing store could not be reached or failed a query.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrUnknownDriver indicates no opener is registered for the configured driver.
	ErrUnknownDriver = errors.New("unknown database driver")
)
