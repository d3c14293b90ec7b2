package shared

import (
	"errors"
	"fmt"
	"strings"
)

// DirtyWorktreePolicy describes how the updater treats repositories with uncommitted changes.
type DirtyWorktreePolicy int

const (
	// SkipDirty leaves dirty repositories untouched.
	SkipDirty DirtyWorktreePolicy = iota
	// StashDirty stashes local changes around the update and restores them afterwards.
	StashDirty
)

// DirtyWorktreePolicyFromBool converts the stash flag into a policy value.
func DirtyWorktreePolicyFromBool(stashChanges bool) DirtyWorktreePolicy {
	if stashChanges {
		return StashDirty
	}
	return SkipDirty
}

// ShouldStash reports whether dirty repositories are stashed before updating.
func (policy DirtyWorktreePolicy) ShouldStash() bool {
	return policy == StashDirty
}

// UpdateStrategy names the git operation used to bring a repository up to date.
type UpdateStrategy string

// Supported update strategies.
const (
	UpdateStrategyPull   UpdateStrategy = "pull"
	UpdateStrategyFetch  UpdateStrategy = "fetch"
	UpdateStrategyRebase UpdateStrategy = "rebase"
)

// ErrUnknownUpdateStrategy indicates a strategy name outside the supported set.
var ErrUnknownUpdateStrategy = errors.New("unknown update strategy")

// ParseUpdateStrategy normalizes a strategy name case-insensitively.
func ParseUpdateStrategy(raw string) (UpdateStrategy, error) {
	switch UpdateStrategy(strings.ToLower(strings.TrimSpace(raw))) {
	case UpdateStrategyPull:
		return UpdateStrategyPull, nil
	case UpdateStrategyFetch:
		return UpdateStrategyFetch, nil
	case UpdateStrategyRebase:
		return UpdateStrategyRebase, nil
	default:
		return "", fmt.Errorf("%w: %q (expected pull, fetch, or rebase)", ErrUnknownUpdateStrategy, raw)
	}
}

// UpdateStrategyNames lists the supported strategies in display order.
func UpdateStrategyNames() []string {
	return []string{string(UpdateStrategyPull), string(UpdateStrategyFetch), string(UpdateStrategyRebase)}
}
