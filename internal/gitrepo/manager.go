package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/gittyup/internal/execshell"
	"github.com/temirov/gittyup/internal/repos/shared"
)

const (
	gitExecutorMissingMessageConstant     = "git executor not configured"
	repositoryPathRequiredMessageConstant = "repository path must be provided"
	revisionRequiredMessageConstant       = "revision must be provided"
	commitCountParseErrorTemplateConstant = "unable to parse commit count %q: %w"
	gitStatusSubcommandConstant           = "status"
	gitPorcelainFlagConstant              = "--porcelain"
	gitBranchSubcommandConstant           = "branch"
	gitShowCurrentFlagConstant            = "--show-current"
	gitRevParseSubcommandConstant         = "rev-parse"
	gitIsBareRepositoryFlagConstant       = "--is-bare-repository"
	gitVerifyFlagConstant                 = "--verify"
	gitQuietFlagConstant                  = "--quiet"
	gitRevListSubcommandConstant          = "rev-list"
	gitCountFlagConstant                  = "--count"
	gitRevisionRangeTemplateConstant      = "%s..%s"
	gitHeadReferenceConstant              = "HEAD"
	gitUpstreamReferenceConstant          = "@{u}"
	gitDiffSubcommandConstant             = "diff"
	gitShortStatFlagConstant              = "--shortstat"
	gitStashSubcommandConstant            = "stash"
	gitStashPushSubcommandConstant        = "push"
	gitStashPopSubcommandConstant         = "pop"
	gitIncludeUntrackedFlagConstant       = "--include-untracked"
	gitMessageFlagConstant                = "--message"
	gitAutoStashMessageConstant           = "gittyup: automatic stash before update"
	gitNoLocalChangesMarkerConstant       = "No local changes to save"
	gitPullSubcommandConstant             = "pull"
	gitFetchSubcommandConstant            = "fetch"
	gitAllRemotesFlagConstant             = "--all"
	gitNoEditFlagConstant                 = "--no-edit"
	gitPruneFlagConstant                  = "--prune"
	gitRebaseFlagConstant                 = "--rebase"
	gitMergeSubcommandConstant            = "merge"
	gitRebaseSubcommandConstant           = "rebase"
	gitAbortFlagConstant                  = "--abort"
	gitBareRepositoryTrueValueConstant    = "true"
)

// ErrGitExecutorNotConfigured indicates the manager was created without an executor.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// ErrRepositoryPathRequired indicates an operation received an empty repository path.
var ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessageConstant)

// ErrRevisionRequired indicates a revision argument was empty.
var ErrRevisionRequired = errors.New(revisionRequiredMessageConstant)

// RepositoryManager runs the git operations needed to inspect and update a repository.
type RepositoryManager struct {
	executor shared.GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager backed by the provided executor.
func NewRepositoryManager(executor shared.GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// GetCurrentBranch returns the checked-out branch, or shared.DetachedHeadBranchName when HEAD is detached.
func (manager *RepositoryManager) GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitBranchSubcommandConstant, gitShowCurrentFlagConstant)
	if executionError != nil {
		return "", executionError
	}
	branchName := strings.TrimSpace(output)
	if len(branchName) == 0 {
		return shared.DetachedHeadBranchName, nil
	}
	return branchName, nil
}

// CheckCleanWorktree reports whether the repository has no staged, unstaged, or untracked changes.
func (manager *RepositoryManager) CheckCleanWorktree(executionContext context.Context, repositoryPath string) (bool, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitStatusSubcommandConstant, gitPorcelainFlagConstant)
	if executionError != nil {
		return false, executionError
	}
	return len(strings.TrimSpace(output)) == 0, nil
}

// IsBareRepository reports whether the repository has no working tree.
func (manager *RepositoryManager) IsBareRepository(executionContext context.Context, repositoryPath string) (bool, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitRevParseSubcommandConstant, gitIsBareRepositoryFlagConstant)
	if executionError != nil {
		return false, executionError
	}
	return strings.TrimSpace(output) == gitBareRepositoryTrueValueConstant, nil
}

// ResolveRevision returns the object name of the supplied revision.
func (manager *RepositoryManager) ResolveRevision(executionContext context.Context, repositoryPath string, revision string) (string, error) {
	trimmedRevision := strings.TrimSpace(revision)
	if len(trimmedRevision) == 0 {
		return "", ErrRevisionRequired
	}
	output, executionError := manager.run(executionContext, repositoryPath, gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, trimmedRevision)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(output), nil
}

// CountCommits returns the number of commits reachable from toRevision but not from fromRevision.
func (manager *RepositoryManager) CountCommits(executionContext context.Context, repositoryPath string, fromRevision string, toRevision string) (int, error) {
	if len(strings.TrimSpace(fromRevision)) == 0 || len(strings.TrimSpace(toRevision)) == 0 {
		return 0, ErrRevisionRequired
	}
	return manager.countRange(executionContext, repositoryPath, fmt.Sprintf(gitRevisionRangeTemplateConstant, strings.TrimSpace(fromRevision), strings.TrimSpace(toRevision)))
}

// CountCommitsBehindUpstream returns how many upstream commits HEAD lacks, per the last fetch.
func (manager *RepositoryManager) CountCommitsBehindUpstream(executionContext context.Context, repositoryPath string) (int, error) {
	return manager.countRange(executionContext, repositoryPath, fmt.Sprintf(gitRevisionRangeTemplateConstant, gitHeadReferenceConstant, gitUpstreamReferenceConstant))
}

// DiffShortStat summarizes the file changes between two revisions.
func (manager *RepositoryManager) DiffShortStat(executionContext context.Context, repositoryPath string, fromRevision string, toRevision string) (string, error) {
	if len(strings.TrimSpace(fromRevision)) == 0 || len(strings.TrimSpace(toRevision)) == 0 {
		return "", ErrRevisionRequired
	}
	output, executionError := manager.run(executionContext, repositoryPath, gitDiffSubcommandConstant, gitShortStatFlagConstant, strings.TrimSpace(fromRevision), strings.TrimSpace(toRevision))
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(output), nil
}

// StashPush stashes tracked and untracked changes and reports whether a stash entry was created.
func (manager *RepositoryManager) StashPush(executionContext context.Context, repositoryPath string) (bool, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitStashSubcommandConstant, gitStashPushSubcommandConstant, gitIncludeUntrackedFlagConstant, gitMessageFlagConstant, gitAutoStashMessageConstant)
	if executionError != nil {
		return false, executionError
	}
	return !strings.Contains(output, gitNoLocalChangesMarkerConstant), nil
}

// StashPop restores the most recent stash entry.
func (manager *RepositoryManager) StashPop(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitStashSubcommandConstant, gitStashPopSubcommandConstant)
	return executionError
}

// Pull fetches all remotes and merges the upstream of the current branch.
func (manager *RepositoryManager) Pull(executionContext context.Context, repositoryPath string) (execshell.ExecutionResult, error) {
	return manager.execute(executionContext, repositoryPath, gitPullSubcommandConstant, gitAllRemotesFlagConstant, gitNoEditFlagConstant)
}

// Fetch downloads objects from all remotes and prunes deleted remote branches.
func (manager *RepositoryManager) Fetch(executionContext context.Context, repositoryPath string) (execshell.ExecutionResult, error) {
	return manager.execute(executionContext, repositoryPath, gitFetchSubcommandConstant, gitAllRemotesFlagConstant, gitPruneFlagConstant)
}

// PullRebase fetches the upstream and rebases local commits on top of it.
func (manager *RepositoryManager) PullRebase(executionContext context.Context, repositoryPath string) (execshell.ExecutionResult, error) {
	return manager.execute(executionContext, repositoryPath, gitPullSubcommandConstant, gitRebaseFlagConstant)
}

// AbortMerge abandons an in-progress merge.
func (manager *RepositoryManager) AbortMerge(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitMergeSubcommandConstant, gitAbortFlagConstant)
	return executionError
}

// AbortRebase abandons an in-progress rebase.
func (manager *RepositoryManager) AbortRebase(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.run(executionContext, repositoryPath, gitRebaseSubcommandConstant, gitAbortFlagConstant)
	return executionError
}

func (manager *RepositoryManager) countRange(executionContext context.Context, repositoryPath string, revisionRange string) (int, error) {
	output, executionError := manager.run(executionContext, repositoryPath, gitRevListSubcommandConstant, gitCountFlagConstant, revisionRange)
	if executionError != nil {
		return 0, executionError
	}
	trimmedOutput := strings.TrimSpace(output)
	count, parseError := strconv.Atoi(trimmedOutput)
	if parseError != nil {
		return 0, fmt.Errorf(commitCountParseErrorTemplateConstant, trimmedOutput, parseError)
	}
	return count, nil
}

func (manager *RepositoryManager) run(executionContext context.Context, repositoryPath string, arguments ...string) (string, error) {
	result, executionError := manager.execute(executionContext, repositoryPath, arguments...)
	if executionError != nil {
		return "", executionError
	}
	return result.StandardOutput, nil
}

func (manager *RepositoryManager) execute(executionContext context.Context, repositoryPath string, arguments ...string) (execshell.ExecutionResult, error) {
	trimmedRepositoryPath := strings.TrimSpace(repositoryPath)
	if len(trimmedRepositoryPath) == 0 {
		return execshell.ExecutionResult{}, ErrRepositoryPathRequired
	}
	return manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: trimmedRepositoryPath,
	})
}
