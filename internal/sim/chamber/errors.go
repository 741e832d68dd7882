package chamber

import "errors"

var (
	// ErrInvalidSpeed is returned when the per-tick speed is not positive.
	ErrInvalidSpeed = errors.New("speed must be greater than 0")
	// ErrInvalidInput is returned when no chamber description is supplied.
	ErrInvalidInput = errors.New("chamber description must not be nil")
)
