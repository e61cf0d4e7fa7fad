package runway

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("runway: no store configured")
	ErrStoreClosed = errors.New("runway: store closed")

	// Caller-facing errors.
	ErrUnauthorized = errors.New("runway: unauthorized")
	ErrInvalidInput = errors.New("runway: invalid input")
	ErrJobNotFound  = errors.New("runway: job not found")

	// ErrJobActive is returned when a submission reuses a (caller, job id)
	// pair whose previous record is RUNNING.
	ErrJobActive = errors.New("runway: job already active")

	// ErrInvalidTransition indicates a lifecycle state machine violation.
	// It is a programming error in the calling code, not routine user error.
	ErrInvalidTransition = errors.New("runway: invalid state transition")
)
