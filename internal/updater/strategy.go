package updater

import (
	"context"
	"fmt"
	"strings"

	"github.com/temirov/gittyup/internal/execshell"
	"github.com/temirov/gittyup/internal/repos/shared"
)

const (
	fastForwardOutputMarkerConstant      = "Fast-forward"
	alreadyUpToDateMessageConstant       = "already up to date"
	fastForwardMessageTemplateConstant   = "fast-forward: %s"
	fastForwardCountTemplateConstant     = "fast-forward: %d %s"
	mergedMessageTemplateConstant        = "merged %d %s"
	mergedWithStatTemplateConstant       = "merged %d %s: %s"
	rebasedMessageConstant               = "rebased onto upstream"
	rebasedWithStatTemplateConstant      = "rebased onto upstream: %s"
	fetchedBehindTemplateConstant        = "fetched; %d %s behind upstream"
	fetchedUpToDateMessageConstant       = "fetched; up to date with upstream"
	fetchedWithoutUpstreamMessage        = "fetched; no upstream to compare"
	commitSingularConstant               = "commit"
	commitPluralConstant                 = "commits"
	unknownStrategyErrorTemplateConstant = "%w: %q"
)

// appliedUpdate captures what a successful strategy run changed.
type appliedUpdate struct {
	repositoryPath   string
	previousRevision string
	currentRevision  string
	commitsPulled    int
	result           execshell.ExecutionResult
}

// Strategy is one way of bringing a repository up to date. The set of
// implementations is closed: PullStrategy, FetchStrategy, and RebaseStrategy.
type Strategy interface {
	// Name reports the configuration name of the strategy.
	Name() shared.UpdateStrategy
	// Apply runs the update against the repository.
	Apply(executionContext context.Context, manager shared.GitRepositoryManager, repositoryPath string) (execshell.ExecutionResult, error)
	// Abort returns the repository to its pre-update state after a conflict.
	Abort(executionContext context.Context, manager shared.GitRepositoryManager, repositoryPath string) error
	// RequiresBranch reports whether the strategy fails on a detached HEAD.
	RequiresBranch() bool
	// RequiresWorkingTree reports whether the strategy cannot run in a bare repository.
	RequiresWorkingTree() bool

	describe(executionContext context.Context, manager shared.GitRepositoryManager, update appliedUpdate) string
}

// StrategyFor returns the Strategy implementing the named update strategy.
func StrategyFor(name shared.UpdateStrategy) (Strategy, error) {
	switch name {
	case shared.UpdateStrategyPull:
		return PullStrategy{}, nil
	case shared.UpdateStrategyFetch:
		return FetchStrategy{}, nil
	case shared.UpdateStrategyRebase:
		return RebaseStrategy{}, nil
	default:
		return nil, fmt.Errorf(unknownStrategyErrorTemplateConstant, shared.ErrUnknownUpdateStrategy, name)
	}
}

// PullStrategy fetches all remotes and merges the upstream into the current branch.
type PullStrategy struct{}

// Name reports the configuration name of the strategy.
func (PullStrategy) Name() shared.UpdateStrategy {
	return shared.UpdateStrategyPull
}

// Apply runs git pull.
func (PullStrategy) Apply(executionContext context.Context, manager shared.GitRepositoryManager, repositoryPath string) (execshell.ExecutionResult, error) {
	return manager.Pull(executionContext, repositoryPath)
}

// Abort abandons a conflicted merge.
func (PullStrategy) Abort(executionContext context.Context, manager shared.GitRepositoryManager, repositoryPath string) error {
	return manager.AbortMerge(executionContext, repositoryPath)
}

// RequiresBranch reports true.
func (PullStrategy) RequiresBranch() bool {
	return true
}

// RequiresWorkingTree reports true.
func (PullStrategy) RequiresWorkingTree() bool {
	return true
}

func (PullStrategy) describe(executionContext context.Context, manager shared.GitRepositoryManager, update appliedUpdate) string {
	if update.commitsPulled == 0 {
		return alreadyUpToDateMessageConstant
	}
	shortStat := diffSummary(executionContext, manager, update)
	if strings.Contains(update.result.StandardOutput, fastForwardOutputMarkerConstant) {
		if len(shortStat) > 0 {
			return fmt.Sprintf(fastForwardMessageTemplateConstant, shortStat)
		}
		return fmt.Sprintf(fastForwardCountTemplateConstant, update.commitsPulled, pluralizeCommits(update.commitsPulled))
	}
	if len(shortStat) > 0 {
		return fmt.Sprintf(mergedWithStatTemplateConstant, update.commitsPulled, pluralizeCommits(update.commitsPulled), shortStat)
	}
	return fmt.Sprintf(mergedMessageTemplateConstant, update.commitsPulled, pluralizeCommits(update.commitsPulled))
}

// FetchStrategy updates remote-tracking references without touching the working tree.
type FetchStrategy struct{}

// Name reports the configuration name of the strategy.
func (FetchStrategy) Name() shared.UpdateStrategy {
	return shared.UpdateStrategyFetch
}

// Apply runs git fetch.
func (FetchStrategy) Apply(executionContext context.Context, manager shared.GitRepositoryManager, repositoryPath string) (execshell.ExecutionResult, error) {
	return manager.Fetch(executionContext, repositoryPath)
}

// Abort is a no-op because fetching never leaves an operation in progress.
func (FetchStrategy) Abort(context.Context, shared.GitRepositoryManager, string) error {
	return nil
}

// RequiresBranch reports false.
func (FetchStrategy) RequiresBranch() bool {
	return false
}

// RequiresWorkingTree reports false.
func (FetchStrategy) RequiresWorkingTree() bool {
	return false
}

func (FetchStrategy) describe(executionContext context.Context, manager shared.GitRepositoryManager, update appliedUpdate) string {
	behindCount, countError := manager.CountCommitsBehindUpstream(executionContext, update.repositoryPath)
	switch {
	case countError != nil:
		return fetchedWithoutUpstreamMessage
	case behindCount == 0:
		return fetchedUpToDateMessageConstant
	default:
		return fmt.Sprintf(fetchedBehindTemplateConstant, behindCount, pluralizeCommits(behindCount))
	}
}

// RebaseStrategy fetches the upstream and replays local commits on top of it.
type RebaseStrategy struct{}

// Name reports the configuration name of the strategy.
func (RebaseStrategy) Name() shared.UpdateStrategy {
	return shared.UpdateStrategyRebase
}

// Apply runs git pull --rebase.
func (RebaseStrategy) Apply(executionContext context.Context, manager shared.GitRepositoryManager, repositoryPath string) (execshell.ExecutionResult, error) {
	return manager.PullRebase(executionContext, repositoryPath)
}

// Abort abandons a conflicted rebase.
func (RebaseStrategy) Abort(executionContext context.Context, manager shared.GitRepositoryManager, repositoryPath string) error {
	return manager.AbortRebase(executionContext, repositoryPath)
}

// RequiresBranch reports true.
func (RebaseStrategy) RequiresBranch() bool {
	return true
}

// RequiresWorkingTree reports true.
func (RebaseStrategy) RequiresWorkingTree() bool {
	return true
}

func (RebaseStrategy) describe(executionContext context.Context, manager shared.GitRepositoryManager, update appliedUpdate) string {
	if update.previousRevision == update.currentRevision {
		return alreadyUpToDateMessageConstant
	}
	shortStat := diffSummary(executionContext, manager, update)
	if len(shortStat) > 0 {
		return fmt.Sprintf(rebasedWithStatTemplateConstant, shortStat)
	}
	return rebasedMessageConstant
}

func diffSummary(executionContext context.Context, manager shared.GitRepositoryManager, update appliedUpdate) string {
	if len(update.previousRevision) == 0 || len(update.currentRevision) == 0 {
		return ""
	}
	shortStat, diffError := manager.DiffShortStat(executionContext, update.repositoryPath, update.previousRevision, update.currentRevision)
	if diffError != nil {
		return ""
	}
	return shortStat
}

func pluralizeCommits(count int) string {
	if count == 1 {
		return commitSingularConstant
	}
	return commitPluralConstant
}
