package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable is returned when a provider has no credentials
	// or has been marked unavailable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidInput is returned for empty utterances, unstarted sessions
	// and policy-blocked turns.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRenderJobNotFound is returned when a render job id is unknown.
	ErrRenderJobNotFound = errors.New("render job not found")
)

// ProviderError is a vendor-side failure: non-2xx, malformed payload or an
// empty completion.
type ProviderError struct {
	ProviderID string
	Status     int
	Detail     string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s error [%d]: %s", e.ProviderID, e.Status, e.Detail)
	}
	return fmt.Sprintf("provider %s error: %s", e.ProviderID, e.Detail)
}

// RenderSubmitError means the renderer rejected the job creation request.
type RenderSubmitError struct {
	Status int
	Detail string
}

func (e *RenderSubmitError) Error() string {
	return fmt.Sprintf("video generation failed to start [%d]: %s", e.Status, e.Detail)
}

// RenderFailedError means the renderer reported the job as failed, or the
// status could not be retrieved.
type RenderFailedError struct {
	JobID  string
	Detail string
	Cause  error
}

func (e *RenderFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("video generation failed for job %s: %s: %v", e.JobID, e.Detail, e.Cause)
	}
	return fmt.Sprintf("video generation failed for job %s: %s", e.JobID, e.Detail)
}

func (e *RenderFailedError) Unwrap() error {
	return e.Cause
}

// RenderTimeoutError means the job did not finish within the attempt budget.
type RenderTimeoutError struct {
	JobID    string
	Attempts int
}

func (e *RenderTimeoutError) Error() string {
	return fmt.Sprintf("video generation timed out for job %s after %d attempts", e.JobID, e.Attempts)
}

// InvalidInputf wraps ErrInvalidInput with a detail message.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
