package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// promptPasscode is the passcode gate's prompt. An empty entry cancels.
func promptPasscode(ctx context.Context, reason string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return promptPassword(reason + "\nPasscode: ")
}

// keyringPassword unlocks the encrypted file keyring, from
// ATLAS_KEYSTORE_FILE_PASSWORD when set.
func keyringPassword(prompt string) (string, error) {
	if pw := viper.GetString("keystore.file_password"); pw != "" {
		return pw, nil
	}
	pw, err := promptPassword(prompt + ": ")
	if err != nil {
		return "", fmt.Errorf("read keyring password: %w", err)
	}
	return string(pw), nil
}

// readInput returns args joined, or stdin when args is empty or "-".
func readInput(args []string) ([]byte, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return []byte(strings.Join(args, " ")), nil
	}
	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}

// confirm asks a yes/no question on stderr and reads the answer from stdin.
func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
