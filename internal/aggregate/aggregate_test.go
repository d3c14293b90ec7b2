package aggregate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gittyup/internal/aggregate"
	"github.com/temirov/gittyup/internal/orchestrator"
	"github.com/temirov/gittyup/internal/repos/shared"
)

func successStatus(path string) shared.RepoStatus {
	return shared.RepoStatus{Path: path, State: shared.RepositoryStateSuccess, Message: "already up to date"}
}

func skippedStatus(path string) shared.RepoStatus {
	return shared.RepoStatus{Path: path, State: shared.RepositoryStateSkipped, Message: "uncommitted changes detected", HasUncommittedChanges: true}
}

func failedStatus(path string) shared.RepoStatus {
	return shared.FailedStatus(path, shared.ErrorKindNetworkFailure, "pull failed", "could not resolve host")
}

func TestAggregateOrdersByDiscoverySequence(testInstance *testing.T) {
	completions := []orchestrator.Completion{
		{Sequence: 2, Status: failedStatus("/repos/c")},
		{Sequence: 0, Status: successStatus("/repos/a")},
		{Sequence: 1, Status: skippedStatus("/repos/b")},
	}

	report := aggregate.Aggregate(completions, 1500*time.Millisecond, false)

	require.Equal(testInstance, []string{"/repos/a", "/repos/b", "/repos/c"}, []string{report.Repositories[0].Path, report.Repositories[1].Path, report.Repositories[2].Path})
	require.Equal(testInstance, aggregate.SummaryStats{
		ReposFound:      3,
		ReposUpdated:    1,
		ReposSkipped:    1,
		ReposFailed:     1,
		DurationSeconds: 1.5,
	}, report.Summary)
	require.Equal(testInstance, 2, completions[0].Sequence)
}

func TestAggregateEmptyInput(testInstance *testing.T) {
	report := aggregate.Aggregate(nil, 0, false)
	require.Equal(testInstance, aggregate.SummaryStats{}, report.Summary)
	require.Empty(testInstance, report.Repositories)
	require.NotNil(testInstance, report.Repositories)
	require.Equal(testInstance, aggregate.ExitCodeSuccess, report.ExitCode())
}

func TestReportExitCode(testInstance *testing.T) {
	testCases := []struct {
		name         string
		statuses     []shared.RepoStatus
		interrupted  bool
		expectedCode int
	}{
		{name: "all_succeeded", statuses: []shared.RepoStatus{successStatus("/a"), successStatus("/b")}, expectedCode: 0},
		{name: "skips_are_not_failures", statuses: []shared.RepoStatus{successStatus("/a"), skippedStatus("/b")}, expectedCode: 0},
		{name: "only_skips", statuses: []shared.RepoStatus{skippedStatus("/a")}, expectedCode: 0},
		{name: "partial_failure", statuses: []shared.RepoStatus{successStatus("/a"), failedStatus("/b")}, expectedCode: 2},
		{name: "total_failure", statuses: []shared.RepoStatus{failedStatus("/a"), failedStatus("/b")}, expectedCode: 3},
		{name: "failure_with_skips_only", statuses: []shared.RepoStatus{skippedStatus("/a"), failedStatus("/b")}, expectedCode: 3},
		{name: "interrupted_wins", statuses: []shared.RepoStatus{successStatus("/a")}, interrupted: true, expectedCode: 130},
		{name: "interrupted_with_nothing_done", interrupted: true, expectedCode: 130},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			completions := make([]orchestrator.Completion, 0, len(testCase.statuses))
			for index, status := range testCase.statuses {
				completions = append(completions, orchestrator.Completion{Sequence: index, Status: status})
			}

			report := aggregate.Aggregate(completions, time.Second, testCase.interrupted)
			require.Equal(testInstance, testCase.expectedCode, report.ExitCode())

			summary := report.Summary
			require.Equal(testInstance, summary.ReposFound, summary.ReposUpdated+summary.ReposSkipped+summary.ReposFailed)
		})
	}
}
