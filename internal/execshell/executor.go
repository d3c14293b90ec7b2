package execshell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandName identifies an external executable invoked through the shell layer.
type CommandName string

const (
	// CommandGit identifies the git executable.
	CommandGit CommandName = "git"
)

const (
	gitTerminalPromptEnvironmentNameConstant  = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledValueConstant    = "0"
	commandFailedErrorTemplateConstant        = "%s exited with code %d%s"
	commandExecutionErrorTemplateConstant     = "%s could not be executed: %v"
	commandTimeoutErrorTemplateConstant       = "%s timed out after %s"
	toolUnavailableErrorTemplateConstant      = "%w: %s: %v"
	commandLogMessageStartedConstant          = "command started"
	commandLogMessageCompletedConstant        = "command completed"
	commandLogMessageFailedConstant           = "command failed"
	commandLogMessageExecutionFailedConstant  = "command execution failed"
	commandLogMessageTimedOutConstant         = "command timed out"
	commandLogFieldNameConstant               = "command"
	commandLogFieldArgumentsConstant          = "arguments"
	commandLogFieldWorkingDirectoryConstant   = "working_directory"
	commandLogFieldExitCodeConstant           = "exit_code"
	commandLogFieldStandardErrorConstant      = "standard_error"
	commandLogFieldTimeoutConstant            = "timeout"
	commandLogFieldDurationConstant           = "duration"
	commandDescriptionSeparatorConstant       = " "
	commandFailureStandardErrorSuffixConstant = ": %s"
)

var (
	// ErrLoggerNotConfigured indicates that a ShellExecutor was created without a logger.
	ErrLoggerNotConfigured = errors.New("execshell: logger not configured")
	// ErrCommandRunnerNotConfigured indicates that a ShellExecutor was created without a runner.
	ErrCommandRunnerNotConfigured = errors.New("execshell: command runner not configured")
	// ErrCommandFailed is matched by every CommandFailedError.
	ErrCommandFailed = errors.New("execshell: command exited with non-zero status")
	// ErrCommandExecution is matched by every CommandExecutionError.
	ErrCommandExecution = errors.New("execshell: command could not be executed")
	// ErrCommandTimeout is matched by every CommandTimeoutError.
	ErrCommandTimeout = errors.New("execshell: command timed out")
	// ErrToolUnavailable indicates that a required executable is missing from PATH.
	ErrToolUnavailable = errors.New("execshell: required tool unavailable")
)

// CommandDetails describes the arguments and environment for a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
}

// ShellCommand pairs an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outcome of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CombinedOutput joins standard output and standard error for classification.
func (result ExecutionResult) CombinedOutput() string {
	return strings.TrimSpace(strings.Join([]string{result.StandardOutput, result.StandardError}, "\n"))
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a process that finished with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

func (failure CommandFailedError) Error() string {
	standardErrorSuffix := ""
	trimmedStandardError := strings.TrimSpace(failure.Result.StandardError)
	if len(trimmedStandardError) > 0 {
		standardErrorSuffix = fmt.Sprintf(commandFailureStandardErrorSuffixConstant, trimmedStandardError)
	}
	return fmt.Sprintf(commandFailedErrorTemplateConstant, describeCommand(failure.Command), failure.Result.ExitCode, standardErrorSuffix)
}

// Unwrap exposes ErrCommandFailed for errors.Is.
func (failure CommandFailedError) Unwrap() error {
	return ErrCommandFailed
}

// CommandExecutionError reports a process that could not be started or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, describeCommand(failure.Command), failure.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (failure CommandExecutionError) Unwrap() []error {
	return []error{ErrCommandExecution, failure.Cause}
}

// CommandTimeoutError reports a process killed after exceeding its time limit.
type CommandTimeoutError struct {
	Command ShellCommand
	Timeout time.Duration
}

func (failure CommandTimeoutError) Error() string {
	return fmt.Sprintf(commandTimeoutErrorTemplateConstant, describeCommand(failure.Command), failure.Timeout)
}

// Unwrap exposes ErrCommandTimeout and context.DeadlineExceeded.
func (failure CommandTimeoutError) Unwrap() []error {
	return []error{ErrCommandTimeout, context.DeadlineExceeded}
}

// ExecutorOption customizes a ShellExecutor.
type ExecutorOption func(*ShellExecutor)

// WithCommandTimeout bounds every command by the supplied duration. Non-positive values disable the bound.
func WithCommandTimeout(timeout time.Duration) ExecutorOption {
	return func(executor *ShellExecutor) {
		executor.commandTimeout = timeout
	}
}

// WithCommandEventObserver registers an observer notified about command lifecycle events. Observers accumulate.
func WithCommandEventObserver(observer CommandEventObserver) ExecutorOption {
	return func(executor *ShellExecutor) {
		if observer != nil {
			executor.observers = append(executor.observers, observer)
		}
	}
}

// ShellExecutor runs commands through a CommandRunner with logging and timeouts.
type ShellExecutor struct {
	logger         *zap.Logger
	runner         CommandRunner
	observers      commandEventObservers
	commandTimeout time.Duration
}

// NewShellExecutor validates dependencies and constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, options ...ExecutorOption) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	executor := &ShellExecutor{
		logger: logger,
		runner: runner,
	}
	for _, option := range options {
		if option != nil {
			option(executor)
		}
	}
	return executor, nil
}

// ExecuteGit runs git with terminal prompts disabled.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	environment := make(map[string]string, len(details.EnvironmentVariables)+1)
	for environmentKey, environmentValue := range details.EnvironmentVariables {
		environment[environmentKey] = environmentValue
	}
	environment[gitTerminalPromptEnvironmentNameConstant] = gitTerminalPromptDisabledValueConstant
	details.EnvironmentVariables = environment

	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// Execute runs the supplied command and converts failures into typed errors.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandContext := executionContext
	if executor.commandTimeout > 0 {
		var cancel context.CancelFunc
		commandContext, cancel = context.WithTimeout(executionContext, executor.commandTimeout)
		defer cancel()
	}

	commandFields := []zap.Field{
		zap.String(commandLogFieldNameConstant, string(command.Name)),
		zap.Strings(commandLogFieldArgumentsConstant, command.Details.Arguments),
		zap.String(commandLogFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}

	executor.logger.Debug(commandLogMessageStartedConstant, commandFields...)
	executor.observers.CommandStarted(command)
	startedAt := time.Now()

	executionResult, runError := executor.runner.Run(commandContext, command)
	elapsed := time.Since(startedAt)

	if executor.commandTimeout > 0 && errors.Is(commandContext.Err(), context.DeadlineExceeded) && executionContext.Err() == nil {
		timeoutError := CommandTimeoutError{Command: command, Timeout: executor.commandTimeout}
		executor.logger.Warn(commandLogMessageTimedOutConstant, append(commandFields, zap.Duration(commandLogFieldTimeoutConstant, executor.commandTimeout))...)
		executor.observers.CommandExecutionFailed(command, timeoutError)
		return ExecutionResult{}, timeoutError
	}

	if runError != nil {
		executionError := CommandExecutionError{Command: command, Cause: runError}
		executor.logger.Warn(commandLogMessageExecutionFailedConstant, append(commandFields, zap.Error(runError))...)
		executor.observers.CommandExecutionFailed(command, executionError)
		return ExecutionResult{}, executionError
	}

	executor.observers.CommandCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		executor.logger.Debug(commandLogMessageFailedConstant, append(commandFields,
			zap.Int(commandLogFieldExitCodeConstant, executionResult.ExitCode),
			zap.String(commandLogFieldStandardErrorConstant, strings.TrimSpace(executionResult.StandardError)),
			zap.Duration(commandLogFieldDurationConstant, elapsed),
		)...)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(commandLogMessageCompletedConstant, append(commandFields, zap.Duration(commandLogFieldDurationConstant, elapsed))...)
	return executionResult, nil
}

// EnsureToolAvailable confirms that the named executable can be located on PATH.
func EnsureToolAvailable(name CommandName) error {
	if _, lookupError := exec.LookPath(string(name)); lookupError != nil {
		return fmt.Errorf(toolUnavailableErrorTemplateConstant, ErrToolUnavailable, name, lookupError)
	}
	return nil
}

func describeCommand(command ShellCommand) string {
	commandParts := append([]string{string(command.Name)}, command.Details.Arguments...)
	return strings.Join(commandParts, commandDescriptionSeparatorConstant)
}
