// Package updater runs the per-repository update state machine.
//
// An Updater inspects a repository, skips it when it is dirty and stashing is
// disabled, optionally stashes local changes, applies one Strategy (pull,
// fetch, or rebase), restores the stash, and classifies the outcome into a
// shared.RepoStatus. Failures are returned as values on the status, never as
// Go errors.
package updater
