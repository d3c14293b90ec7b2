package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/temirov/gittyup/internal/execshell"
)

const (
	// DetachedHeadBranchName is reported as the branch of a repository whose HEAD is not on a branch.
	DetachedHeadBranchName = "HEAD (detached)"

	repositoryErrorTemplateConstant = "%s: %s"
)

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// GitExecutor exposes the subset of shell execution used by repository services.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// GitRepositoryManager exposes the repository operations performed while updating a repository.
type GitRepositoryManager interface {
	GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	CheckCleanWorktree(executionContext context.Context, repositoryPath string) (bool, error)
	IsBareRepository(executionContext context.Context, repositoryPath string) (bool, error)
	ResolveRevision(executionContext context.Context, repositoryPath string, revision string) (string, error)
	CountCommits(executionContext context.Context, repositoryPath string, fromRevision string, toRevision string) (int, error)
	CountCommitsBehindUpstream(executionContext context.Context, repositoryPath string) (int, error)
	DiffShortStat(executionContext context.Context, repositoryPath string, fromRevision string, toRevision string) (string, error)
	StashPush(executionContext context.Context, repositoryPath string) (bool, error)
	StashPop(executionContext context.Context, repositoryPath string) error
	Pull(executionContext context.Context, repositoryPath string) (execshell.ExecutionResult, error)
	Fetch(executionContext context.Context, repositoryPath string) (execshell.ExecutionResult, error)
	PullRebase(executionContext context.Context, repositoryPath string) (execshell.ExecutionResult, error)
	AbortMerge(executionContext context.Context, repositoryPath string) error
	AbortRebase(executionContext context.Context, repositoryPath string) error
}

// RepositoryDiscoverer locates Git repositories for bulk operations.
type RepositoryDiscoverer interface {
	DiscoverRepositories(roots []string) ([]string, error)
}

// RepositoryState is the terminal outcome of updating one repository.
type RepositoryState string

// Terminal repository states.
const (
	RepositoryStateSuccess RepositoryState = "success"
	RepositoryStateSkipped RepositoryState = "skipped"
	RepositoryStateFailed  RepositoryState = "failed"
)

// ErrorKind classifies a per-repository failure.
type ErrorKind string

// Failure classifications attached to failed repositories.
const (
	ErrorKindInput                    ErrorKind = "input_error"
	ErrorKindAccess                   ErrorKind = "access_error"
	ErrorKindStashFailure             ErrorKind = "stash_failure"
	ErrorKindAuthenticationFailure    ErrorKind = "authentication_failure"
	ErrorKindNetworkFailure           ErrorKind = "network_failure"
	ErrorKindMergeConflict            ErrorKind = "merge_conflict"
	ErrorKindDetachedHeadIncompatible ErrorKind = "detached_head_incompatible"
	ErrorKindNoUpstream               ErrorKind = "no_upstream"
	ErrorKindUpdateFailure            ErrorKind = "update_failure"
	ErrorKindTimeout                  ErrorKind = "timeout_error"
	ErrorKindSystem                   ErrorKind = "system_error"
	ErrorKindInterrupted              ErrorKind = "interrupted"
)

// RepositoryError carries the classification and raw detail of a failure.
type RepositoryError struct {
	Kind   ErrorKind
	Detail string
}

// NewRepositoryError constructs a RepositoryError.
func NewRepositoryError(kind ErrorKind, detail string) *RepositoryError {
	return &RepositoryError{Kind: kind, Detail: detail}
}

// Error renders the failure as "<kind>: <detail>".
func (repositoryError *RepositoryError) Error() string {
	if repositoryError == nil {
		return ""
	}
	if len(repositoryError.Detail) == 0 {
		return string(repositoryError.Kind)
	}
	return fmt.Sprintf(repositoryErrorTemplateConstant, repositoryError.Kind, repositoryError.Detail)
}

// RepoStatus is the outcome record for one repository.
type RepoStatus struct {
	Path                  string
	Branch                string
	State                 RepositoryState
	Message               string
	Error                 *RepositoryError
	HasUncommittedChanges bool
	CommitsPulled         int
}

// Updated reports whether the repository counts towards the updated total.
func (status RepoStatus) Updated() bool {
	return status.State == RepositoryStateSuccess
}

// Failed reports whether the repository counts towards the failed total.
func (status RepoStatus) Failed() bool {
	return status.State == RepositoryStateFailed
}

// FailedStatus builds a failed status for the repository at path.
func FailedStatus(path string, kind ErrorKind, message string, detail string) RepoStatus {
	return RepoStatus{
		Path:    path,
		State:   RepositoryStateFailed,
		Message: message,
		Error:   NewRepositoryError(kind, detail),
	}
}
