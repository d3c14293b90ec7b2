package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	gitRevParseSubcommandNameConstant   = "rev-parse"
	gitIsBareRepositoryFlagConstant     = "--is-bare-repository"
	gitHeadReferenceConstant            = "HEAD"
	gitStatusSubcommandNameConstant     = "status"
	gitBranchSubcommandNameConstant     = "branch"
	gitShowCurrentFlagConstant          = "--show-current"
	gitStashSubcommandNameConstant      = "stash"
	gitStashPushSubcommandNameConstant  = "push"
	gitStashPopSubcommandNameConstant   = "pop"
	gitPullSubcommandNameConstant       = "pull"
	gitRebaseFlagConstant               = "--rebase"
	gitFetchSubcommandNameConstant      = "fetch"
	gitAllRemotesFlagConstant           = "--all"
	gitRevListSubcommandNameConstant    = "rev-list"
	gitDiffSubcommandNameConstant       = "diff"
	gitShortStatFlagConstant            = "--shortstat"
	gitMergeSubcommandNameConstant      = "merge"
	gitRebaseSubcommandNameConstant     = "rebase"
	gitAbortFlagConstant                = "--abort"
	gitFetchAllRemotesLabelConstant     = "all remotes"
	gitRevisionRangeSeparatorConstant   = ".."
	gitTrackedUpstreamLabelConstant     = "upstream"
	gitTrackedUpstreamReferenceConstant = "@{u}"
)

type gitMessageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	gitStatusTemplates = gitMessageTemplates{
		start:            "Reviewing working tree status in %s",
		success:          "Collected working tree status for %s",
		failure:          "Failed to review working tree status in %s (exit code %d%s)",
		executionFailure: "Unable to review working tree status in %s: %s",
	}
	gitCurrentBranchTemplates = gitMessageTemplates{
		start:            "Identifying current branch in %s",
		success:          "Identified current branch in %s",
		failure:          "Failed to identify current branch in %s (exit code %d%s)",
		executionFailure: "Unable to identify current branch in %s: %s",
	}
	gitBareRepositoryTemplates = gitMessageTemplates{
		start:            "Checking whether %s is a bare repository",
		success:          "Checked repository layout of %s",
		failure:          "Failed to check repository layout of %s (exit code %d%s)",
		executionFailure: "Unable to check repository layout of %s: %s",
	}
	gitRevisionTemplates = gitMessageTemplates{
		start:            "Resolving %s in %s",
		success:          "Resolved %s in %s",
		failure:          "Failed to resolve %s in %s (exit code %d%s)",
		executionFailure: "Unable to resolve %s in %s: %s",
	}
	gitStashPushTemplates = gitMessageTemplates{
		start:            "Stashing uncommitted changes in %s",
		success:          "Stashed uncommitted changes in %s",
		failure:          "Failed to stash uncommitted changes in %s (exit code %d%s)",
		executionFailure: "Unable to stash uncommitted changes in %s: %s",
	}
	gitStashPopTemplates = gitMessageTemplates{
		start:            "Restoring stashed changes in %s",
		success:          "Restored stashed changes in %s",
		failure:          "Failed to restore stashed changes in %s (exit code %d%s)",
		executionFailure: "Unable to restore stashed changes in %s: %s",
	}
	gitPullTemplates = gitMessageTemplates{
		start:            "Pulling from %s in %s",
		success:          "Pulled from %s in %s",
		failure:          "Failed to pull from %s in %s (exit code %d%s)",
		executionFailure: "Unable to pull from %s in %s: %s",
	}
	gitPullRebaseTemplates = gitMessageTemplates{
		start:            "Rebasing %s onto %s",
		success:          "Rebased %s onto %s",
		failure:          "Failed to rebase %s onto %s (exit code %d%s)",
		executionFailure: "Unable to rebase %s onto %s: %s",
	}
	gitFetchTemplates = gitMessageTemplates{
		start:            "Fetching from %s in %s",
		success:          "Fetched from %s in %s",
		failure:          "Failed to fetch from %s in %s (exit code %d%s)",
		executionFailure: "Unable to fetch from %s in %s: %s",
	}
	gitRevListTemplates = gitMessageTemplates{
		start:            "Counting commits in %s for %s",
		success:          "Counted commits in %s for %s",
		failure:          "Failed to count commits in %s for %s (exit code %d%s)",
		executionFailure: "Unable to count commits in %s for %s: %s",
	}
	gitShortStatTemplates = gitMessageTemplates{
		start:            "Summarizing changes in %s for %s",
		success:          "Summarized changes in %s for %s",
		failure:          "Failed to summarize changes in %s for %s (exit code %d%s)",
		executionFailure: "Unable to summarize changes in %s for %s: %s",
	}
	gitAbortTemplates = gitMessageTemplates{
		start:            "Aborting %s in %s",
		success:          "Aborted %s in %s",
		failure:          "Failed to abort %s in %s (exit code %d%s)",
		executionFailure: "Unable to abort %s in %s: %s",
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch strings.TrimSpace(arguments[0]) {
	case gitStatusSubcommandNameConstant:
		return formatter.render(gitStatusTemplates, stage, result, failure, workingDirectory)
	case gitBranchSubcommandNameConstant:
		if containsArgument(arguments, gitShowCurrentFlagConstant) {
			return formatter.render(gitCurrentBranchTemplates, stage, result, failure, workingDirectory)
		}
	case gitRevParseSubcommandNameConstant:
		if containsArgument(arguments, gitIsBareRepositoryFlagConstant) {
			return formatter.render(gitBareRepositoryTemplates, stage, result, failure, workingDirectory)
		}
		return formatter.render(gitRevisionTemplates, stage, result, failure, formatter.lastArgument(arguments), workingDirectory)
	case gitStashSubcommandNameConstant:
		switch formatter.argumentAtIndex(arguments, 1) {
		case gitStashPushSubcommandNameConstant:
			return formatter.render(gitStashPushTemplates, stage, result, failure, workingDirectory)
		case gitStashPopSubcommandNameConstant:
			return formatter.render(gitStashPopTemplates, stage, result, failure, workingDirectory)
		}
	case gitPullSubcommandNameConstant:
		if containsArgument(arguments, gitRebaseFlagConstant) {
			return formatter.render(gitPullRebaseTemplates, stage, result, failure, workingDirectory, gitTrackedUpstreamLabelConstant)
		}
		return formatter.render(gitPullTemplates, stage, result, failure, formatter.describeRemotes(arguments), workingDirectory)
	case gitFetchSubcommandNameConstant:
		return formatter.render(gitFetchTemplates, stage, result, failure, formatter.describeRemotes(arguments), workingDirectory)
	case gitRevListSubcommandNameConstant:
		return formatter.render(gitRevListTemplates, stage, result, failure, workingDirectory, formatter.describeRevisionRange(formatter.lastArgument(arguments)))
	case gitDiffSubcommandNameConstant:
		if containsArgument(arguments, gitShortStatFlagConstant) && len(arguments) >= 4 {
			revisionRange := formatter.argumentAtIndex(arguments, len(arguments)-2) + gitRevisionRangeSeparatorConstant + formatter.lastArgument(arguments)
			return formatter.render(gitShortStatTemplates, stage, result, failure, workingDirectory, revisionRange)
		}
	case gitMergeSubcommandNameConstant, gitRebaseSubcommandNameConstant:
		if containsArgument(arguments, gitAbortFlagConstant) {
			return formatter.render(gitAbortTemplates, stage, result, failure, strings.TrimSpace(arguments[0]), workingDirectory)
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) render(templates gitMessageTemplates, stage messageStage, result ExecutionResult, failure error, values ...any) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, values...)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, values...)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, append(values, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))...)
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, append(values, formatter.describeFailure(failure))...)
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := emptyStringConstant
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) > 0 {
		workingDirectorySuffix = fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) describeRemotes(arguments []string) string {
	if containsArgument(arguments, gitAllRemotesFlagConstant) {
		return gitFetchAllRemotesLabelConstant
	}
	for _, argument := range arguments[1:] {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, "-") {
			continue
		}
		return trimmed
	}
	return gitTrackedUpstreamLabelConstant
}

func (formatter CommandMessageFormatter) describeRevisionRange(revisionRange string) string {
	if strings.Contains(revisionRange, gitTrackedUpstreamReferenceConstant) {
		return fmt.Sprintf("%s%s%s", gitHeadReferenceConstant, gitRevisionRangeSeparatorConstant, gitTrackedUpstreamLabelConstant)
	}
	return revisionRange
}

func (formatter CommandMessageFormatter) lastArgument(arguments []string) string {
	if len(arguments) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	lastArgument := strings.TrimSpace(arguments[len(arguments)-1])
	if len(lastArgument) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return lastArgument
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index >= 0 && index < len(arguments) {
		return strings.TrimSpace(arguments[index])
	}
	return emptyStringConstant
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}
