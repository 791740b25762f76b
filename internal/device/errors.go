package device

import "errors"

// Domain errors for the device package.
var (
	// ErrNotFound is returned when a device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating a device whose ID is taken.
	ErrExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when a device definition is malformed.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidUpdate is wrapped by every UpdateError.
	ErrInvalidUpdate = errors.New("device: invalid update")
)

// UpdateError rejects a provider update command. Detail is the exact
// message returned to the caller.
type UpdateError struct {
	Detail string
}

func (e *UpdateError) Error() string { return e.Detail }

// Unwrap lets callers match with errors.Is(err, ErrInvalidUpdate).
func (e *UpdateError) Unwrap() error { return ErrInvalidUpdate }

func rejectUpdate(detail string) error {
	return &UpdateError{Detail: detail}
}
