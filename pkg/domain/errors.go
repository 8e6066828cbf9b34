package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session key has no stored transcript.
var ErrSessionNotFound = errors.New("session not found")

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrMalformedEvent is returned for inbound events that cannot be parsed into a known shape.
var ErrMalformedEvent = errors.New("malformed inbound event")

// GenerationError reports a failed or timed out call to the generation backend.
type GenerationError struct {
	Step     StepName
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("generation failed at %s after %d attempts: %v", e.Step, e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation failed at %s: %v", e.Step, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// DeliveryError reports a failed send to one observer connection.
type DeliveryError struct {
	ConnID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.ConnID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
