// Package biometric asks the platform to assert user presence.
//
// A Gate reports one of three outcomes: succeeded, failed, or cancelled.
// Hard platform conditions (no sensor, nothing enrolled, lockout) are
// returned as errors matching ErrNotAvailable, carrying the platform's
// human-readable reason.
package biometric

import (
	"context"
	"errors"
	"fmt"
)

// Outcome is the result of one authentication attempt.
type Outcome int

const (
	// Failed means the user was not verified.
	Failed Outcome = iota
	// Succeeded means the platform verified the user.
	Succeeded
	// Cancelled means the user or system dismissed the prompt.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Result carries the outcome and a reason suitable for display.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Gate is the platform user-presence capability.
type Gate interface {
	// Available reports whether the capability exists and is enrolled.
	Available() bool
	// Authenticate prompts the user. A cancelled ctx yields Cancelled.
	Authenticate(ctx context.Context, reason string) (Result, error)
}

var (
	// ErrNotAvailable reports that the platform cannot authenticate at all.
	ErrNotAvailable = errors.New("biometric authentication not available")
	// ErrUnsupported signals that biometrics are not implemented on this platform.
	ErrUnsupported = fmt.Errorf("%w: not supported on this platform", ErrNotAvailable)
)

// UnavailableError is a platform refusal such as lockout or no enrollment.
type UnavailableError struct {
	Code   int
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("biometric authentication not available: %s", e.Reason)
}

// Is lets errors.Is(err, ErrNotAvailable) match.
func (e *UnavailableError) Is(target error) bool { return target == ErrNotAvailable }

// Unavailable is the Gate for hosts with no user-presence capability.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Authenticate(context.Context, string) (Result, error) {
	return Result{Outcome: Failed, Reason: "no biometric capability"}, ErrUnsupported
}

const defaultReason = "Authenticate to continue"
