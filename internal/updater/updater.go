package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gittyup/internal/repos/shared"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	headRevisionConstant                    = "HEAD"
	upstreamRevisionConstant                = "@{u}"
	inspectionFailedMessageConstant         = "unable to inspect repository"
	uncommittedChangesMessageConstant       = "uncommitted changes detected"
	bareRepositoryMessageConstant           = "bare repository has no working tree"
	detachedHeadMessageTemplateConstant     = "HEAD is detached; %s requires a checked-out branch"
	stashFailedMessageConstant              = "unable to stash local changes; update not attempted"
	updateFailedMessageTemplateConstant     = "%s failed"
	conflictAbortedSuffixConstant           = "; aborted, repository left as before"
	conflictAbortFailedSuffixConstant       = "; abort failed, manual intervention required"
	restoredStashSuffixConstant             = "; restored stashed changes"
	stashLeftIntactMessageTemplateConstant  = "%s; stashed changes could not be restored and were left in the stash"
	stashLeftIntactDetailTemplateConstant   = "stash pop failed, stash left intact: %s"
	combinedDetailTemplateConstant          = "%s\n%s"
	updatePanicMessageConstant              = "update aborted unexpectedly"
	dryRunSkipMessageTemplateConstant       = "would skip: %s"
	dryRunMessageTemplateConstant           = "would %s%s (%s)"
	dryRunStashPrefixConstant               = "stash changes and "
	dryRunBehindTemplateConstant            = "%d %s behind per last fetch"
	dryRunUpstreamUnknownConstant           = "upstream unknown"
	updateLogMessageConstant                = "repository processed"
	stateTransitionLogMessageConstant       = "repository state"
	logFieldRepositoryPathConstant          = "repository_path"
	logFieldStrategyConstant                = "strategy"
	logFieldStateConstant                   = "state"
	logFieldPhaseConstant                   = "phase"
	logFieldErrorKindConstant               = "error_kind"
	logFieldCommitsPulledConstant           = "commits_pulled"
	logFieldDryRunConstant                  = "dry_run"
	phaseInspectedConstant                  = "inspected"
	phaseStashedConstant                    = "stashed"
	phaseUpdatedConstant                    = "updated"
	phaseUpdateFailedConstant               = "update_failed"
	phaseUnstashedConstant                  = "unstashed"
)

// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)

// Dependencies enumerates external collaborators required by the Updater.
type Dependencies struct {
	RepositoryManager shared.GitRepositoryManager
	Logger            *zap.Logger
}

// Options configures how repositories are updated.
type Options struct {
	Strategy            shared.UpdateStrategy
	DirtyWorktreePolicy shared.DirtyWorktreePolicy
	DryRun              bool
}

// Updater brings one repository at a time up to date.
type Updater struct {
	manager  shared.GitRepositoryManager
	logger   *zap.Logger
	strategy Strategy
	policy   shared.DirtyWorktreePolicy
	dryRun   bool
}

// NewUpdater validates dependencies and options and constructs an Updater.
func NewUpdater(dependencies Dependencies, options Options) (*Updater, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	strategy, strategyError := StrategyFor(options.Strategy)
	if strategyError != nil {
		return nil, strategyError
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{
		manager:  dependencies.RepositoryManager,
		logger:   logger,
		strategy: strategy,
		policy:   options.DirtyWorktreePolicy,
		dryRun:   options.DryRun,
	}, nil
}

// inspection is the read-only snapshot taken before any mutation.
type inspection struct {
	bare   bool
	branch string
	dirty  bool
}

// Update runs the state machine for the repository at repositoryPath and returns its terminal status.
func (updater *Updater) Update(executionContext context.Context, repositoryPath string) (status shared.RepoStatus) {
	defer func() {
		if recovered := recover(); recovered != nil {
			status = shared.FailedStatus(repositoryPath, shared.ErrorKindUpdateFailure, updatePanicMessageConstant, fmt.Sprint(recovered))
		}
		updater.logOutcome(status)
	}()

	snapshot, inspectionError := updater.inspect(executionContext, repositoryPath)
	if inspectionError != nil {
		kind := classifyFailure(inspectionError, accessFailurePatterns, shared.ErrorKindAccess)
		return shared.FailedStatus(repositoryPath, kind, inspectionFailedMessageConstant, failureDetail(inspectionError))
	}
	updater.logPhase(repositoryPath, phaseInspectedConstant)

	status = shared.RepoStatus{
		Path:                  repositoryPath,
		Branch:                snapshot.branch,
		HasUncommittedChanges: snapshot.dirty,
	}

	if snapshot.dirty && !updater.policy.ShouldStash() {
		return updater.skip(status, uncommittedChangesMessageConstant)
	}
	if snapshot.bare && updater.strategy.RequiresWorkingTree() {
		return updater.skip(status, bareRepositoryMessageConstant)
	}
	if snapshot.branch == shared.DetachedHeadBranchName && updater.strategy.RequiresBranch() {
		return fail(status, shared.ErrorKindDetachedHeadIncompatible, fmt.Sprintf(detachedHeadMessageTemplateConstant, updater.strategy.Name()), "")
	}

	if updater.dryRun {
		return updater.preview(executionContext, status, snapshot)
	}

	stashCreated := false
	if snapshot.dirty {
		created, stashError := updater.manager.StashPush(executionContext, repositoryPath)
		if stashError != nil {
			return fail(status, shared.ErrorKindStashFailure, stashFailedMessageConstant, failureDetail(stashError))
		}
		stashCreated = created
		updater.logPhase(repositoryPath, phaseStashedConstant)
	}

	previousRevision := updater.resolveHead(executionContext, repositoryPath)
	result, updateError := updater.strategy.Apply(executionContext, updater.manager, repositoryPath)
	if updateError != nil {
		updater.logPhase(repositoryPath, phaseUpdateFailedConstant)
		return updater.recoverFromUpdateFailure(executionContext, status, updateError, stashCreated)
	}
	updater.logPhase(repositoryPath, phaseUpdatedConstant)

	update := appliedUpdate{
		repositoryPath:   repositoryPath,
		previousRevision: previousRevision,
		currentRevision:  updater.resolveHead(executionContext, repositoryPath),
		result:           result,
	}
	update.commitsPulled = updater.countPulledCommits(executionContext, update)
	message := updater.strategy.describe(executionContext, updater.manager, update)

	if stashCreated {
		if popError := updater.manager.StashPop(executionContext, repositoryPath); popError != nil {
			return fail(status, shared.ErrorKindStashFailure, fmt.Sprintf(stashLeftIntactMessageTemplateConstant, message), fmt.Sprintf(stashLeftIntactDetailTemplateConstant, failureDetail(popError)))
		}
		updater.logPhase(repositoryPath, phaseUnstashedConstant)
		message += restoredStashSuffixConstant
	}

	status.State = shared.RepositoryStateSuccess
	status.Message = message
	status.CommitsPulled = update.commitsPulled
	return status
}

func (updater *Updater) inspect(executionContext context.Context, repositoryPath string) (inspection, error) {
	bare, bareError := updater.manager.IsBareRepository(executionContext, repositoryPath)
	if bareError != nil {
		return inspection{}, bareError
	}
	if bare {
		return inspection{bare: true}, nil
	}

	branch, branchError := updater.manager.GetCurrentBranch(executionContext, repositoryPath)
	if branchError != nil {
		return inspection{}, branchError
	}
	clean, cleanError := updater.manager.CheckCleanWorktree(executionContext, repositoryPath)
	if cleanError != nil {
		return inspection{}, cleanError
	}
	return inspection{branch: branch, dirty: !clean}, nil
}

func (updater *Updater) preview(executionContext context.Context, status shared.RepoStatus, snapshot inspection) shared.RepoStatus {
	behindDescription := dryRunUpstreamUnknownConstant
	if behindCount, countError := updater.manager.CountCommitsBehindUpstream(executionContext, status.Path); countError == nil {
		behindDescription = fmt.Sprintf(dryRunBehindTemplateConstant, behindCount, pluralizeCommits(behindCount))
	}
	stashPrefix := ""
	if snapshot.dirty {
		stashPrefix = dryRunStashPrefixConstant
	}

	status.State = shared.RepositoryStateSuccess
	status.Message = fmt.Sprintf(dryRunMessageTemplateConstant, stashPrefix, updater.strategy.Name(), behindDescription)
	return status
}

func (updater *Updater) recoverFromUpdateFailure(executionContext context.Context, status shared.RepoStatus, updateError error, stashCreated bool) shared.RepoStatus {
	kind := classifyFailure(updateError, updateFailurePatterns, shared.ErrorKindUpdateFailure)
	message := fmt.Sprintf(updateFailedMessageTemplateConstant, updater.strategy.Name())
	detail := failureDetail(updateError)

	if kind == shared.ErrorKindMergeConflict {
		if abortError := updater.strategy.Abort(executionContext, updater.manager, status.Path); abortError != nil {
			message += conflictAbortFailedSuffixConstant
			detail = fmt.Sprintf(combinedDetailTemplateConstant, detail, failureDetail(abortError))
		} else {
			message += conflictAbortedSuffixConstant
		}
	}

	if stashCreated {
		if popError := updater.manager.StashPop(executionContext, status.Path); popError != nil {
			return fail(status, shared.ErrorKindStashFailure, fmt.Sprintf(stashLeftIntactMessageTemplateConstant, message), fmt.Sprintf(combinedDetailTemplateConstant, detail, fmt.Sprintf(stashLeftIntactDetailTemplateConstant, failureDetail(popError))))
		}
		message += restoredStashSuffixConstant
	}

	return fail(status, kind, message, detail)
}

// countPulledCommits counts the upstream commits HEAD gained, excluding rebased local commits and merge commits.
func (updater *Updater) countPulledCommits(executionContext context.Context, update appliedUpdate) int {
	if len(update.previousRevision) == 0 || len(update.currentRevision) == 0 || update.previousRevision == update.currentRevision {
		return 0
	}
	rangeEnd := update.currentRevision
	if upstreamRevision, upstreamError := updater.manager.ResolveRevision(executionContext, update.repositoryPath, upstreamRevisionConstant); upstreamError == nil && len(strings.TrimSpace(upstreamRevision)) > 0 {
		rangeEnd = strings.TrimSpace(upstreamRevision)
	}
	commitsPulled, countError := updater.manager.CountCommits(executionContext, update.repositoryPath, update.previousRevision, rangeEnd)
	if countError != nil {
		return 0
	}
	return commitsPulled
}

func (updater *Updater) resolveHead(executionContext context.Context, repositoryPath string) string {
	revision, revisionError := updater.manager.ResolveRevision(executionContext, repositoryPath, headRevisionConstant)
	if revisionError != nil {
		return ""
	}
	return strings.TrimSpace(revision)
}

func (updater *Updater) skip(status shared.RepoStatus, reason string) shared.RepoStatus {
	status.State = shared.RepositoryStateSkipped
	status.Message = reason
	if updater.dryRun {
		status.Message = fmt.Sprintf(dryRunSkipMessageTemplateConstant, reason)
	}
	return status
}

func (updater *Updater) logPhase(repositoryPath string, phase string) {
	updater.logger.Debug(
		stateTransitionLogMessageConstant,
		zap.String(logFieldRepositoryPathConstant, repositoryPath),
		zap.String(logFieldPhaseConstant, phase),
	)
}

func (updater *Updater) logOutcome(status shared.RepoStatus) {
	fields := []zap.Field{
		zap.String(logFieldRepositoryPathConstant, status.Path),
		zap.String(logFieldStrategyConstant, string(updater.strategy.Name())),
		zap.String(logFieldStateConstant, string(status.State)),
		zap.Int(logFieldCommitsPulledConstant, status.CommitsPulled),
		zap.Bool(logFieldDryRunConstant, updater.dryRun),
	}
	if status.Error != nil {
		updater.logger.Info(updateLogMessageConstant, append(fields, zap.String(logFieldErrorKindConstant, string(status.Error.Kind)))...)
		return
	}
	updater.logger.Debug(updateLogMessageConstant, fields...)
}

func fail(status shared.RepoStatus, kind shared.ErrorKind, message string, detail string) shared.RepoStatus {
	status.State = shared.RepositoryStateFailed
	status.Message = message
	status.Error = shared.NewRepositoryError(kind, detail)
	status.CommitsPulled = 0
	return status
}
