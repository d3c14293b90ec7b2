package cli

import (
	"errors"
	"fmt"

	"github.com/temirov/gittyup/internal/aggregate"
)

const (
	exitStatusTemplateConstant = "exit status %d"
)

// ExitError carries the process exit status for a finished command.
type ExitError struct {
	Code int
	Err  error
}

func (exitError ExitError) Error() string {
	if exitError.Err == nil {
		return fmt.Sprintf(exitStatusTemplateConstant, exitError.Code)
	}
	return exitError.Err.Error()
}

// Unwrap exposes the underlying error.
func (exitError ExitError) Unwrap() error {
	return exitError.Err
}

func inputError(cause error) ExitError {
	return ExitError{Code: aggregate.ExitCodeInputError, Err: cause}
}

// systemError reports environment failures such as a missing git binary. They share exit status 1 with input errors.
func systemError(cause error) ExitError {
	return ExitError{Code: aggregate.ExitCodeInputError, Err: cause}
}

// ExitCode maps an execution error to a process exit status.
func ExitCode(executionError error) int {
	if executionError == nil {
		return aggregate.ExitCodeSuccess
	}
	var exitError ExitError
	if errors.As(executionError, &exitError) {
		return exitError.Code
	}
	return aggregate.ExitCodeInputError
}
