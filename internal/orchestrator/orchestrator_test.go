package orchestrator_test

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gittyup/internal/orchestrator"
	"github.com/temirov/gittyup/internal/repos/shared"
)

const (
	testRepositoryCount = 20
	testUnitDuration    = 5 * time.Millisecond
	testWaitTimeout     = 5 * time.Second
)

type countingUpdater struct {
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	mutex       sync.Mutex
	calls       map[string]int
}

func newCountingUpdater() *countingUpdater {
	return &countingUpdater{calls: map[string]int{}}
}

func (updater *countingUpdater) Update(_ context.Context, repositoryPath string) shared.RepoStatus {
	current := updater.inFlight.Add(1)
	defer updater.inFlight.Add(-1)
	for {
		observed := updater.maxInFlight.Load()
		if current <= observed || updater.maxInFlight.CompareAndSwap(observed, current) {
			break
		}
	}

	updater.mutex.Lock()
	updater.calls[repositoryPath]++
	updater.mutex.Unlock()

	time.Sleep(testUnitDuration)
	return deterministicStatus(repositoryPath)
}

func deterministicStatus(repositoryPath string) shared.RepoStatus {
	switch len(repositoryPath) % 3 {
	case 0:
		return shared.RepoStatus{Path: repositoryPath, State: shared.RepositoryStateSuccess, Message: "already up to date"}
	case 1:
		return shared.RepoStatus{Path: repositoryPath, State: shared.RepositoryStateSkipped, Message: "uncommitted changes detected", HasUncommittedChanges: true}
	default:
		return shared.FailedStatus(repositoryPath, shared.ErrorKindNetworkFailure, "pull failed", "could not resolve host")
	}
}

func repositoryPaths(count int) []string {
	paths := make([]string, 0, count)
	for index := 0; index < count; index++ {
		paths = append(paths, fmt.Sprintf("/workspace/repo-%0*d", index%4+1, index))
	}
	return paths
}

func newOrchestrator(testInstance *testing.T, updater orchestrator.RepositoryUpdater, maxWorkers int) *orchestrator.Orchestrator {
	testInstance.Helper()
	instance, creationError := orchestrator.NewOrchestrator(orchestrator.Dependencies{Updater: updater}, orchestrator.Options{MaxWorkers: maxWorkers})
	require.NoError(testInstance, creationError)
	return instance
}

func sortedBySequence(completions []orchestrator.Completion) []orchestrator.Completion {
	sorted := slices.Clone(completions)
	sort.Slice(sorted, func(left int, right int) bool {
		return sorted[left].Sequence < sorted[right].Sequence
	})
	return sorted
}

func TestNewOrchestratorValidation(testInstance *testing.T) {
	_, missingUpdaterError := orchestrator.NewOrchestrator(orchestrator.Dependencies{}, orchestrator.Options{MaxWorkers: 1})
	require.ErrorIs(testInstance, missingUpdaterError, orchestrator.ErrRepositoryUpdaterNotConfigured)

	_, workerError := orchestrator.NewOrchestrator(orchestrator.Dependencies{Updater: newCountingUpdater()}, orchestrator.Options{MaxWorkers: 0})
	require.ErrorIs(testInstance, workerError, orchestrator.ErrInvalidWorkerCount)
}

func TestOrchestratorRespectsWorkerCap(testInstance *testing.T) {
	testCases := []struct {
		name       string
		maxWorkers int
	}{
		{name: "sequential", maxWorkers: 1},
		{name: "three_workers", maxWorkers: 3},
		{name: "more_workers_than_repositories", maxWorkers: testRepositoryCount * 2},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			updater := newCountingUpdater()
			paths := repositoryPaths(testRepositoryCount)

			run := newOrchestrator(testInstance, updater, testCase.maxWorkers).Start(context.Background(), slices.Values(paths))
			completions := run.Wait()

			require.Len(testInstance, completions, testRepositoryCount)
			require.LessOrEqual(testInstance, updater.maxInFlight.Load(), int64(testCase.maxWorkers))
			require.False(testInstance, run.Interrupted())
			require.Equal(testInstance, testRepositoryCount, run.Dispatched())
			for _, path := range paths {
				require.Equal(testInstance, 1, updater.calls[path])
			}
		})
	}
}

func TestOrchestratorSequentialMatchesParallel(testInstance *testing.T) {
	paths := repositoryPaths(testRepositoryCount)

	sequentialCompletions := sortedBySequence(newOrchestrator(testInstance, newCountingUpdater(), 1).Start(context.Background(), slices.Values(paths)).Wait())
	parallelCompletions := sortedBySequence(newOrchestrator(testInstance, newCountingUpdater(), 4).Start(context.Background(), slices.Values(paths)).Wait())

	require.Equal(testInstance, sequentialCompletions, parallelCompletions)
	for index, completion := range sequentialCompletions {
		require.Equal(testInstance, index, completion.Sequence)
		require.Equal(testInstance, paths[index], completion.Status.Path)
	}
}

func TestOrchestratorEmptySequence(testInstance *testing.T) {
	run := newOrchestrator(testInstance, newCountingUpdater(), 4).Start(context.Background(), slices.Values([]string{}))
	require.Empty(testInstance, run.Wait())
	require.False(testInstance, run.Interrupted())
	require.Zero(testInstance, run.Dispatched())
}

type blockingUpdater struct {
	started          chan string
	release          chan struct{}
	cancelledInsides atomic.Int64
}

func (updater *blockingUpdater) Update(executionContext context.Context, repositoryPath string) shared.RepoStatus {
	updater.started <- repositoryPath
	<-updater.release
	if executionContext.Err() != nil {
		updater.cancelledInsides.Add(1)
	}
	return shared.RepoStatus{Path: repositoryPath, State: shared.RepositoryStateSuccess}
}

func countingSequence(paths []string, pulled *atomic.Int64) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, path := range paths {
			pulled.Add(1)
			if !yield(path) {
				return
			}
		}
	}
}

func TestOrchestratorCancellationStopsDispatch(testInstance *testing.T) {
	const maxWorkers = 2
	updater := &blockingUpdater{started: make(chan string, testRepositoryCount), release: make(chan struct{})}
	var pulledPaths atomic.Int64

	executionContext, cancel := context.WithCancel(context.Background())
	defer cancel()
	run := newOrchestrator(testInstance, updater, maxWorkers).Start(executionContext, countingSequence(repositoryPaths(testRepositoryCount), &pulledPaths))

	for index := 0; index < maxWorkers; index++ {
		select {
		case <-updater.started:
		case <-time.After(testWaitTimeout):
			testInstance.Fatal("workers did not start")
		}
	}
	cancel()
	close(updater.release)

	completions := run.Wait()
	require.Len(testInstance, completions, maxWorkers)
	require.True(testInstance, run.Interrupted())
	require.Equal(testInstance, maxWorkers, run.Dispatched())
	require.Equal(testInstance, int64(maxWorkers), pulledPaths.Load())
	require.Zero(testInstance, updater.cancelledInsides.Load())
	for _, completion := range completions {
		require.Equal(testInstance, shared.RepositoryStateSuccess, completion.Status.State)
	}
}

func TestOrchestratorCancelledBeforeStart(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	var pulledPaths atomic.Int64
	run := newOrchestrator(testInstance, newCountingUpdater(), 2).Start(executionContext, countingSequence(repositoryPaths(3), &pulledPaths))
	require.Empty(testInstance, run.Wait())
	require.True(testInstance, run.Interrupted())
	require.Zero(testInstance, pulledPaths.Load())
}

type panickingUpdater struct {
	panicPath string
}

func (updater panickingUpdater) Update(_ context.Context, repositoryPath string) shared.RepoStatus {
	if repositoryPath == updater.panicPath {
		panic("index out of range")
	}
	return shared.RepoStatus{Path: repositoryPath, State: shared.RepositoryStateSuccess}
}

func TestOrchestratorRecoversWorkerPanics(testInstance *testing.T) {
	paths := []string{"/workspace/a", "/workspace/b", "/workspace/c"}
	completions := sortedBySequence(newOrchestrator(testInstance, panickingUpdater{panicPath: paths[1]}, 2).Start(context.Background(), slices.Values(paths)).Wait())

	require.Len(testInstance, completions, len(paths))
	require.Equal(testInstance, shared.RepositoryStateSuccess, completions[0].Status.State)
	require.Equal(testInstance, shared.RepositoryStateFailed, completions[1].Status.State)
	require.Equal(testInstance, paths[1], completions[1].Status.Path)
	require.Equal(testInstance, shared.ErrorKindUpdateFailure, completions[1].Status.Error.Kind)
	require.Equal(testInstance, shared.RepositoryStateSuccess, completions[2].Status.State)
}
