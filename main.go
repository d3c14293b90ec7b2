package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/temirov/gittyup/cmd/cli"
)

const (
	exitErrorTemplateConstant = "gittyup: %v\n"
)

// main executes the gittyup command-line application.
func main() {
	executionError := cli.Execute(context.Background())
	if executionError == nil {
		return
	}

	var exitError cli.ExitError
	if !errors.As(executionError, &exitError) || exitError.Err != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
	}
	os.Exit(cli.ExitCode(executionError))
}
