package execshell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testMessagesWorkingDirectoryConstant = "/workspace/repo"
)

func TestCommandMessageFormatterDescribesUpdateCommands(t *testing.T) {
	testCases := []struct {
		name            string
		arguments       []string
		expectedStarted string
		expectedSuccess string
	}{
		{
			name:            "fetch_all_remotes",
			arguments:       []string{"fetch", "--all", "--prune"},
			expectedStarted: "Fetching from all remotes in /workspace/repo",
			expectedSuccess: "Fetched from all remotes in /workspace/repo",
		},
		{
			name:            "fetch_named_remote",
			arguments:       []string{"fetch", "--prune", "origin"},
			expectedStarted: "Fetching from origin in /workspace/repo",
			expectedSuccess: "Fetched from origin in /workspace/repo",
		},
		{
			name:            "pull_all_remotes",
			arguments:       []string{"pull", "--all", "--no-edit"},
			expectedStarted: "Pulling from all remotes in /workspace/repo",
			expectedSuccess: "Pulled from all remotes in /workspace/repo",
		},
		{
			name:            "pull_rebase",
			arguments:       []string{"pull", "--rebase"},
			expectedStarted: "Rebasing /workspace/repo onto upstream",
			expectedSuccess: "Rebased /workspace/repo onto upstream",
		},
		{
			name:            "stash_push",
			arguments:       []string{"stash", "push", "--include-untracked"},
			expectedStarted: "Stashing uncommitted changes in /workspace/repo",
			expectedSuccess: "Stashed uncommitted changes in /workspace/repo",
		},
		{
			name:            "stash_pop",
			arguments:       []string{"stash", "pop"},
			expectedStarted: "Restoring stashed changes in /workspace/repo",
			expectedSuccess: "Restored stashed changes in /workspace/repo",
		},
		{
			name:            "current_branch",
			arguments:       []string{"branch", "--show-current"},
			expectedStarted: "Identifying current branch in /workspace/repo",
			expectedSuccess: "Identified current branch in /workspace/repo",
		},
		{
			name:            "behind_upstream",
			arguments:       []string{"rev-list", "--count", "HEAD..@{u}"},
			expectedStarted: "Counting commits in /workspace/repo for HEAD..upstream",
			expectedSuccess: "Counted commits in /workspace/repo for HEAD..upstream",
		},
		{
			name:            "change_summary",
			arguments:       []string{"diff", "--shortstat", "aaa111", "bbb222"},
			expectedStarted: "Summarizing changes in /workspace/repo for aaa111..bbb222",
			expectedSuccess: "Summarized changes in /workspace/repo for aaa111..bbb222",
		},
		{
			name:            "upstream_revision",
			arguments:       []string{"rev-parse", "--verify", "--quiet", "@{u}"},
			expectedStarted: "Resolving @{u} in /workspace/repo",
			expectedSuccess: "Resolved @{u} in /workspace/repo",
		},
		{
			name:            "merge_abort",
			arguments:       []string{"merge", "--abort"},
			expectedStarted: "Aborting merge in /workspace/repo",
			expectedSuccess: "Aborted merge in /workspace/repo",
		},
		{
			name:            "unrecognized_subcommand",
			arguments:       []string{"gc", "--auto"},
			expectedStarted: "Running git gc --auto (in /workspace/repo)",
			expectedSuccess: "Completed git gc --auto (in /workspace/repo)",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			formatter := CommandMessageFormatter{}
			command := ShellCommand{
				Name: CommandGit,
				Details: CommandDetails{
					Arguments:        testCase.arguments,
					WorkingDirectory: testMessagesWorkingDirectoryConstant,
				},
			}

			require.Equal(t, testCase.expectedStarted, formatter.BuildStartedMessage(command))
			require.Equal(t, testCase.expectedSuccess, formatter.BuildSuccessMessage(command))
		})
	}
}

func TestCommandMessageFormatterIncludesFailureDetails(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments:        []string{"pull", "--all", "--no-edit"},
			WorkingDirectory: testMessagesWorkingDirectoryConstant,
		},
	}

	failureMessage := formatter.BuildFailureMessage(command, ExecutionResult{ExitCode: 1, StandardError: "fatal: could not read from remote repository\n"})
	require.Equal(t, "Failed to pull from all remotes in /workspace/repo (exit code 1: fatal: could not read from remote repository)", failureMessage)

	executionFailureMessage := formatter.BuildExecutionFailureMessage(command, errors.New("exec: not started"))
	require.Equal(t, "Unable to pull from all remotes in /workspace/repo: exec: not started", executionFailureMessage)

	unknownFailureMessage := formatter.BuildExecutionFailureMessage(command, nil)
	require.Equal(t, "Unable to pull from all remotes in /workspace/repo: unknown error", unknownFailureMessage)
}

func TestCommandMessageFormatterUsesCurrentDirectoryLabel(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name:    CommandGit,
		Details: CommandDetails{Arguments: []string{"status", "--porcelain"}},
	}

	require.Equal(t, "Reviewing working tree status in current directory", formatter.BuildStartedMessage(command))
}
