package assoc

import "fmt"

type constError string

const (
	// ErrInvalidKey is returned by every operation passed a nil key.
	ErrInvalidKey = constError("invalid key")
	// errBackendUnavailable marks a failed backend construction.
	// The builder logs it and moves to the next backend; it is never
	// returned to callers.
	errBackendUnavailable = constError("backend unavailable")
)

func (errStr constError) Error() string { return string(errStr) }

func nilKeyError(op string) error {
	return fmt.Errorf("%w: %s: key must not be nil", ErrInvalidKey, op)
}
