package ui

import (
	"path/filepath"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/gittyup/internal/execshell"
)

const (
	repositoryPathFieldNameConstant = "repository_path"
	repositoryNameFieldNameConstant = "repository"
)

// git subcommands that change the working tree, the index, or remote-tracking refs.
var mutatingGitSubcommands = []string{"pull", "fetch", "stash", "merge", "rebase"}

// ConsoleCommandEventLogger renders command lifecycle events using a zap logger configured for human-readable output.
// Commands that change a repository are reported at info; read-only inspection commands only at debug.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter execshell.CommandMessageFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.emit(progressLevel(command), eventLogger.formatter.BuildStartedMessage(command), command)
}

// CommandCompleted implements execshell.CommandEventObserver. Non-zero exits are warnings.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode != 0 {
		eventLogger.emit(zapcore.WarnLevel, eventLogger.formatter.BuildFailureMessage(command, result), command)
		return
	}
	eventLogger.emit(progressLevel(command), eventLogger.formatter.BuildSuccessMessage(command), command)
}

// CommandExecutionFailed implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.emit(zapcore.ErrorLevel, eventLogger.formatter.BuildExecutionFailureMessage(command, failure), command)
}

func (eventLogger *ConsoleCommandEventLogger) emit(level zapcore.Level, message string, command execshell.ShellCommand) {
	fields := []zap.Field{zap.String(repositoryPathFieldNameConstant, command.Details.WorkingDirectory)}
	if len(command.Details.WorkingDirectory) > 0 {
		fields = append(fields, zap.String(repositoryNameFieldNameConstant, filepath.Base(command.Details.WorkingDirectory)))
	}
	eventLogger.logger.Log(level, message, fields...)
}

func progressLevel(command execshell.ShellCommand) zapcore.Level {
	if command.Name == execshell.CommandGit && len(command.Details.Arguments) > 0 && slices.Contains(mutatingGitSubcommands, command.Details.Arguments[0]) {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}
