package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientInventory is returned when the question bank cannot fill the requested
	// category/difficulty combination. Retrying cannot help.
	ErrInsufficientInventory = errors.New("not enough questions available for the selected options")
	// ErrInvalidSelection is returned when the category/difficulty combination is rejected.
	ErrInvalidSelection = errors.New("invalid category or difficulty selected")
	// ErrRateLimited marks an upstream rate-limit response with no fresh fallback batch.
	ErrRateLimited = errors.New("question provider rate limited")
	// ErrUnavailable is matched by UnavailableError via errors.Is.
	ErrUnavailable = errors.New("question provider unavailable")

	// ErrAttemptInProgress is returned when a new attempt is requested while one is running.
	ErrAttemptInProgress = errors.New("quiz attempt already in progress")
	// ErrNoActiveAttempt is returned by operations that need an in-progress attempt.
	ErrNoActiveAttempt = errors.New("no active quiz attempt")
	// ErrEmptyAnswer is returned when an answer submission carries no text.
	ErrEmptyAnswer = errors.New("answer must not be empty")

	// ErrProgressNotFound indicates no progression record exists for the identity.
	ErrProgressNotFound = errors.New("user progress not found")
	// ErrUserExists is returned when registering an identity twice.
	ErrUserExists = errors.New("username already exists")
)

// UnavailableError is returned once every acquisition attempt has failed.
type UnavailableError struct {
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("question provider unavailable after %d attempts: %v", e.Attempts, e.Err)
	}
	return "question provider unavailable"
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUnavailable) match regardless of the wrapped cause.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Retryable reports whether err is a transient acquisition failure the user may retry as is.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}
