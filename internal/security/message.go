package security

import (
	"errors"

	"github.com/Hussein-Mazeh/atlas/internal/biometric"
	"github.com/Hussein-Mazeh/atlas/internal/encryption"
	"github.com/Hussein-Mazeh/atlas/internal/settings"
	"github.com/Hussein-Mazeh/atlas/krypto"
)

// ContentUnavailableMessage is shown for every encryption or key failure so
// the cause (tampering, wrong key, missing key) is not revealed.
const ContentUnavailableMessage = "Cannot access secured content."

// UserMessage turns err into text fit for display. Key store codes and
// cipher details never appear in it.
func UserMessage(err error) string {
	var unavailable *biometric.UnavailableError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSecurityDisabled):
		return "Security is turned off. Enable encryption in settings first."
	case errors.Is(err, ErrAuthenticationRequired):
		return "Please authenticate to continue."
	case errors.As(err, &unavailable):
		return "Authentication unavailable: " + unavailable.Reason + "."
	case errors.Is(err, ErrBiometricUnavailable), errors.Is(err, biometric.ErrNotAvailable):
		return "Authentication is not available on this device."
	case errors.Is(err, settings.ErrInvalidTimeout):
		return "The auto-lock timeout must be greater than zero."
	case errors.Is(err, encryption.ErrEncodingFailure):
		return "The text could not be encoded."
	case errors.Is(err, encryption.ErrDecodingFailure):
		return "The secured content is not text."
	case errors.Is(err, ErrEncryptionNotAvailable),
		errors.Is(err, encryption.ErrKeyUnavailable),
		errors.Is(err, encryption.ErrCipherFailure),
		errors.Is(err, krypto.ErrAuthenticationFailed),
		errors.Is(err, krypto.ErrMalformedRecord):
		return ContentUnavailableMessage
	default:
		return "Something went wrong."
	}
}

// OutcomeMessage describes a non-error gate result for display.
func OutcomeMessage(res biometric.Result) string {
	switch res.Outcome {
	case biometric.Succeeded:
		return "Authenticated."
	case biometric.Cancelled:
		return "Authentication cancelled."
	default:
		if res.Reason != "" {
			return "Authentication failed: " + res.Reason + "."
		}
		return "Authentication failed."
	}
}
