package main

import (
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	// Silence the default logger; subcommands log through logging.Logger instead.
	log.SetOutput(ioutil.Discard)
}

// mainify wraps a non-standard Cobra entry point (one returning an error) and
// generates a standard Cobra entry point. It's useful for entry points to be
// able to rely on defer-based cleanup, which doesn't occur if the entry point
// terminates the process. This allows the entry point to indicate an error
// while still performing cleanup.
func mainify(entry func(*cobra.Command, []string) error) func(*cobra.Command, []string) {
	return func(command *cobra.Command, arguments []string) {
		if err := entry(command, arguments); err != nil {
			fatal(err)
		}
	}
}

// disallowArguments is a Cobra arguments validator that disallows positional
// arguments. It's an alternative to cobra.NoArgs, which treats arguments as
// command names and returns a somewhat cryptic error message.
func disallowArguments(_ *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New("command does not accept arguments")
	}
	return nil
}

// fatal prints an error message to standard error and terminates the process
// with an error exit code.
func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
