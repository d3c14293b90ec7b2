// Package gitrepo wraps the git invocations gittyup performs on a single
// repository.
//
// RepositoryManager exposes read-only inspection (branch, worktree status,
// revision and commit counting) alongside the few mutating operations an
// update needs: stash push/pop, pull, fetch, pull --rebase and the matching
// merge/rebase aborts.
package gitrepo
