package execshell

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"
)

const (
	environmentAssignmentSeparatorConstant = "="
	defaultProcessWaitDelayConstant        = 2 * time.Second
)

// OSCommandRunner starts real processes through os/exec.
type OSCommandRunner struct {
	waitDelay   time.Duration
	environment func() []string
}

// NewOSCommandRunner constructs a runner that inherits the process environment.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{waitDelay: defaultProcessWaitDelayConstant, environment: os.Environ}
}

// Run starts the command and waits for it. A non-zero exit is reported through
// ExecutionResult.ExitCode; only failures to start or wait produce an error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	process := exec.CommandContext(executionContext, string(command.Name), slices.Clone(command.Details.Arguments)...)
	process.Dir = command.Details.WorkingDirectory
	// killed git processes can leave ssh or credential helpers holding the pipes open
	process.WaitDelay = runner.waitDelay
	if len(command.Details.EnvironmentVariables) > 0 {
		process.Env = overlayEnvironment(runner.environment(), command.Details.EnvironmentVariables)
	}

	var standardOutput, standardError bytes.Buffer
	process.Stdout = &standardOutput
	process.Stderr = &standardError

	result := func(exitCode int) ExecutionResult {
		return ExecutionResult{
			StandardOutput: standardOutput.String(),
			StandardError:  standardError.String(),
			ExitCode:       exitCode,
		}
	}

	runError := process.Run()
	var exitError *exec.ExitError
	switch {
	case runError == nil:
		return result(0), nil
	case errors.As(runError, &exitError):
		return result(exitError.ExitCode()), nil
	case errors.Is(runError, exec.ErrWaitDelay):
		return result(process.ProcessState.ExitCode()), nil
	default:
		return ExecutionResult{}, runError
	}
}

// overlayEnvironment replaces inherited entries that the overrides redefine and
// appends the overrides in key order.
func overlayEnvironment(inherited []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(inherited)+len(overrides))
	for _, entry := range inherited {
		key, _, _ := strings.Cut(entry, environmentAssignmentSeparatorConstant)
		if _, overridden := overrides[key]; overridden {
			continue
		}
		merged = append(merged, entry)
	}
	for _, key := range slices.Sorted(maps.Keys(overrides)) {
		merged = append(merged, key+environmentAssignmentSeparatorConstant+overrides[key])
	}
	return merged
}
