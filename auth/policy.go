package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	// MinPasscodeLength is the minimum passcode length in characters.
	MinPasscodeLength = 8
	// MinPasscodeScore is the minimum zxcvbn score (0-4).
	MinPasscodeScore = 2
)

var (
	// ErrPasscodeTooShort reports a passcode below MinPasscodeLength.
	ErrPasscodeTooShort = fmt.Errorf("passcode must be at least %d characters long", MinPasscodeLength)
	// ErrPasscodeTooWeak reports a passcode zxcvbn considers guessable.
	ErrPasscodeTooWeak = errors.New("passcode is too easy to guess")
)

// ValidatePasscode applies the device-credential policy: a minimum length and
// a minimum zxcvbn strength score. userInputs (user name, app name) are
// penalised when they appear in the passcode.
func ValidatePasscode(pc string, userInputs ...string) error {
	if utf8.RuneCountInString(pc) < MinPasscodeLength {
		return ErrPasscodeTooShort
	}
	inputs := append([]string{"atlas"}, userInputs...)
	if zxcvbn.PasswordStrength(pc, inputs).Score < MinPasscodeScore {
		return ErrPasscodeTooWeak
	}
	return nil
}
