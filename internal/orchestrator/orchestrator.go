package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/temirov/gittyup/internal/repos/shared"
)

const (
	repositoryUpdaterMissingMessageConstant = "repository updater not configured"
	workerCountErrorTemplateConstant        = "%w: must be at least 1, got %d"
	workerPanicMessageConstant              = "update aborted unexpectedly"
	dispatchLogMessageConstant              = "repository dispatched"
	completionLogMessageConstant            = "repository completed"
	interruptedLogMessageConstant           = "run interrupted; waiting for in-flight repositories"
	runFinishedLogMessageConstant           = "run finished"
	logFieldRepositoryPathConstant          = "repository_path"
	logFieldSequenceConstant                = "sequence"
	logFieldStateConstant                   = "state"
	logFieldDispatchedConstant              = "dispatched"
	logFieldInterruptedConstant             = "interrupted"
	logFieldMaxWorkersConstant              = "max_workers"
)

// ErrRepositoryUpdaterNotConfigured indicates the updater dependency was missing.
var ErrRepositoryUpdaterNotConfigured = errors.New(repositoryUpdaterMissingMessageConstant)

// ErrInvalidWorkerCount indicates a worker cap below one.
var ErrInvalidWorkerCount = errors.New("invalid worker count")

// RepositoryUpdater brings one repository up to date and reports its status.
type RepositoryUpdater interface {
	Update(executionContext context.Context, repositoryPath string) shared.RepoStatus
}

// Completion pairs a repository status with the position at which the repository was discovered.
type Completion struct {
	Sequence int
	Status   shared.RepoStatus
}

// Dependencies enumerates external collaborators required by the Orchestrator.
type Dependencies struct {
	Updater RepositoryUpdater
	Logger  *zap.Logger
}

// Options configures the worker pool.
type Options struct {
	MaxWorkers int
}

// Orchestrator dispatches repository updates under a concurrency cap.
type Orchestrator struct {
	updater    RepositoryUpdater
	logger     *zap.Logger
	maxWorkers int
}

// NewOrchestrator validates dependencies and options and constructs an Orchestrator.
func NewOrchestrator(dependencies Dependencies, options Options) (*Orchestrator, error) {
	if dependencies.Updater == nil {
		return nil, ErrRepositoryUpdaterNotConfigured
	}
	if options.MaxWorkers < 1 {
		return nil, fmt.Errorf(workerCountErrorTemplateConstant, ErrInvalidWorkerCount, options.MaxWorkers)
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{updater: dependencies.Updater, logger: logger, maxWorkers: options.MaxWorkers}, nil
}

// Run is one in-progress batch of repository updates.
type Run struct {
	completions chan Completion
	interrupted atomic.Bool
	dispatched  atomic.Int64
}

// Completions streams results as units finish. The channel closes once every dispatched unit has settled.
func (run *Run) Completions() <-chan Completion {
	return run.completions
}

// Interrupted reports whether the run was cancelled. Valid after Completions is closed.
func (run *Run) Interrupted() bool {
	return run.interrupted.Load()
}

// Dispatched reports how many repositories were handed to workers. Valid after Completions is closed.
func (run *Run) Dispatched() int {
	return int(run.dispatched.Load())
}

// Wait drains the run and returns every completion in arrival order.
func (run *Run) Wait() []Completion {
	completions := make([]Completion, 0)
	for completion := range run.completions {
		completions = append(completions, completion)
	}
	return completions
}

// Start begins dispatching repositories from paths and returns immediately.
// Cancelling executionContext stops dispatch; in-flight units run to completion.
func (orchestrator *Orchestrator) Start(executionContext context.Context, paths iter.Seq[string]) *Run {
	run := &Run{completions: make(chan Completion, orchestrator.maxWorkers)}
	go orchestrator.dispatch(executionContext, paths, run)
	return run
}

func (orchestrator *Orchestrator) dispatch(executionContext context.Context, paths iter.Seq[string], run *Run) {
	workerContext := context.WithoutCancel(executionContext)
	slots := semaphore.NewWeighted(int64(orchestrator.maxWorkers))
	var waitGroup sync.WaitGroup

	nextPath, stopPaths := iter.Pull(paths)
	sequence := 0
	for {
		if acquireError := slots.Acquire(executionContext, 1); acquireError != nil {
			break
		}
		if executionContext.Err() != nil {
			slots.Release(1)
			break
		}
		repositoryPath, available := nextPath()
		if !available {
			slots.Release(1)
			break
		}

		orchestrator.logger.Debug(dispatchLogMessageConstant, zap.String(logFieldRepositoryPathConstant, repositoryPath), zap.Int(logFieldSequenceConstant, sequence))
		run.dispatched.Add(1)
		waitGroup.Add(1)
		go func(unitSequence int, unitPath string) {
			defer waitGroup.Done()
			defer slots.Release(1)
			status := orchestrator.runUnit(workerContext, unitPath)
			orchestrator.logger.Debug(completionLogMessageConstant, zap.String(logFieldRepositoryPathConstant, unitPath), zap.String(logFieldStateConstant, string(status.State)))
			run.completions <- Completion{Sequence: unitSequence, Status: status}
		}(sequence, repositoryPath)
		sequence++
	}
	stopPaths()

	if executionContext.Err() != nil {
		orchestrator.logger.Warn(interruptedLogMessageConstant, zap.Int(logFieldDispatchedConstant, sequence))
	}
	waitGroup.Wait()

	run.interrupted.Store(executionContext.Err() != nil)
	orchestrator.logger.Debug(
		runFinishedLogMessageConstant,
		zap.Int(logFieldDispatchedConstant, sequence),
		zap.Bool(logFieldInterruptedConstant, run.interrupted.Load()),
		zap.Int(logFieldMaxWorkersConstant, orchestrator.maxWorkers),
	)
	close(run.completions)
}

func (orchestrator *Orchestrator) runUnit(workerContext context.Context, repositoryPath string) (status shared.RepoStatus) {
	defer func() {
		if recovered := recover(); recovered != nil {
			status = shared.FailedStatus(repositoryPath, shared.ErrorKindUpdateFailure, workerPanicMessageConstant, fmt.Sprint(recovered))
		}
	}()
	return orchestrator.updater.Update(workerContext, repositoryPath)
}
