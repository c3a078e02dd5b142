package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "<unknown>"

// exitError carries a guest exit code to main.
type exitError struct {
	code int32
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func configureCLI() *cobra.Command {
	root := runCommand()
	root.Version = version
	root.SilenceErrors = true
	root.SilenceUsage = true

	root.AddCommand(inspectCommand())
	root.AddCommand(schemaCommand())
	return root
}

func main() {
	if err := configureCLI().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(int(exit.code))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
