// Command atlas manages the device encryption key, the security policy and
// the passcode gate, and encrypts or decrypts content from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
)

const cliVersion = "0.2.0"

// userError carries a message meant for the user as is.
type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := execute(ctx)
	stop()
	handleError(err)
}

// execute runs the command line and releases the app whether or not the
// command succeeded.
func execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	return err
}

func handleError(err error) {
	if err == nil {
		return
	}

	var uerr userError
	if errors.As(err, &uerr) {
		fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+uerr.Error())
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "unexpected error: %v\n", err)
	os.Exit(2)
}
