package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthRequired is returned when an operation needs a signed-in user.
	ErrAuthRequired = errors.New("authentication required")
	// ErrStorage wraps failures of the remote or local store.
	ErrStorage = errors.New("storage failure")
	// ErrAIGateway wraps failures talking to the generative-text endpoint.
	ErrAIGateway = errors.New("ai gateway failure")
	// ErrValidation is returned for bad input, before any I/O happens.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a record does not exist for the caller.
	ErrNotFound = errors.New("not found")
	// ErrCooldownActive is matched by *CooldownError.
	ErrCooldownActive = errors.New("activity is cooling down")
)

// CooldownError reports a track attempt blocked by the per-type cooldown.
type CooldownError struct {
	ActivityType string
	Remaining    time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %s available again in %s", ErrCooldownActive, e.ActivityType, e.Remaining.Round(time.Second))
}

// Is lets errors.Is match ErrCooldownActive.
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StorageError wraps err as a StorageFailure for the given operation.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
