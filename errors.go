package faultline

import (
	"errors"
	"fmt"
)

// Sentinel errors used to classify pipeline and transport outcomes.
var (
	// ErrInvalidConfig is returned by New when the supplied configuration
	// fails validation. Construction does not complete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosedPipeline is returned when a notice is built or submitted
	// after the async pipeline has been closed.
	ErrClosedPipeline = errors.New("pipeline closed")

	// ErrIgnored marks a deliberate suppression (ignored environment or a
	// filter stage marked the notice ignored). It is a promise rejection
	// reason, not a pipeline failure.
	ErrIgnored = errors.New("notice ignored")

	// ErrTransient and ErrPermanent classify transport-level delivery
	// failures. Transient failures may succeed on a later notice; permanent
	// failures indicate the endpoint rejected the payload outright.
	ErrTransient = errors.New("transient error")
	ErrPermanent = errors.New("permanent error")
)

// WrapTransient annotates an error so callers can detect transient failures.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// WrapPermanent annotates an error as permanent.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}

// WrapIgnored annotates a suppression outcome with a descriptive reason.
func WrapIgnored(reason string) error {
	if reason == "" {
		return ErrIgnored
	}
	return fmt.Errorf("%w: %s", ErrIgnored, reason)
}
