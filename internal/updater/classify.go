package updater

import (
	"context"
	"errors"
	"strings"

	"github.com/temirov/gittyup/internal/execshell"
	"github.com/temirov/gittyup/internal/gitrepo"
	"github.com/temirov/gittyup/internal/repos/shared"
)

type outputPattern struct {
	kind    shared.ErrorKind
	markers []string
}

// Checked in order; the first matching marker wins.
var updateFailurePatterns = []outputPattern{
	{
		kind: shared.ErrorKindAuthenticationFailure,
		markers: []string{
			"authentication failed",
			"could not read username",
			"could not read password",
			"terminal prompts disabled",
			"permission denied (publickey",
			"invalid username or password",
			"host key verification failed",
			"repository not found",
			"the requested url returned error: 401",
			"the requested url returned error: 403",
		},
	},
	{
		kind: shared.ErrorKindNetworkFailure,
		markers: []string{
			"could not resolve host",
			"could not resolve hostname",
			"temporary failure in name resolution",
			"connection refused",
			"connection timed out",
			"connection reset",
			"network is unreachable",
			"no route to host",
			"operation timed out",
			"failed to connect",
			"unable to access",
			"early eof",
			"the remote end hung up unexpectedly",
			"could not read from remote repository",
		},
	},
	{
		kind: shared.ErrorKindMergeConflict,
		markers: []string{
			"conflict",
			"automatic merge failed",
			"could not apply",
			"unmerged files",
			"resolve all conflicts",
		},
	},
	{
		kind: shared.ErrorKindDetachedHeadIncompatible,
		markers: []string{
			"you are not currently on a branch",
		},
	},
	{
		kind: shared.ErrorKindNoUpstream,
		markers: []string{
			"there is no tracking information",
			"no upstream configured",
			"no such ref was fetched",
			"does not appear to be a git repository",
			"no remote repository specified",
		},
	},
}

var accessFailurePatterns = []outputPattern{
	{
		kind: shared.ErrorKindAccess,
		markers: []string{
			"permission denied",
			"not a git repository",
			"detected dubious ownership",
		},
	},
}

// classifyFailure maps a git failure to an error kind, falling back when the output is unrecognized.
func classifyFailure(failure error, patterns []outputPattern, fallback shared.ErrorKind) shared.ErrorKind {
	switch {
	case failure == nil:
		return fallback
	case errors.Is(failure, gitrepo.ErrRepositoryPathRequired):
		return shared.ErrorKindInput
	case errors.Is(failure, execshell.ErrCommandTimeout):
		return shared.ErrorKindTimeout
	case errors.Is(failure, context.Canceled):
		return shared.ErrorKindInterrupted
	case errors.Is(failure, execshell.ErrCommandExecution):
		return shared.ErrorKindSystem
	}

	normalizedOutput := strings.ToLower(failureOutput(failure))
	for _, pattern := range patterns {
		for _, marker := range pattern.markers {
			if strings.Contains(normalizedOutput, marker) {
				return pattern.kind
			}
		}
	}
	return fallback
}

// failureDetail renders the raw git output of a failure with credentials removed.
func failureDetail(failure error) string {
	if failure == nil {
		return ""
	}
	detail := failureOutput(failure)
	if len(detail) == 0 {
		detail = failure.Error()
	}
	return gitrepo.RedactCredentials(detail)
}

func failureOutput(failure error) string {
	var commandFailure execshell.CommandFailedError
	if errors.As(failure, &commandFailure) {
		return commandFailure.Result.CombinedOutput()
	}
	return ""
}
