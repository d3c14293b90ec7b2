package cli

import (
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gittyup/internal/aggregate"
	"github.com/temirov/gittyup/internal/config"
	"github.com/temirov/gittyup/internal/execshell"
	"github.com/temirov/gittyup/internal/orchestrator"
	"github.com/temirov/gittyup/internal/report"
	"github.com/temirov/gittyup/internal/repos/dependencies"
	"github.com/temirov/gittyup/internal/repos/discovery"
	"github.com/temirov/gittyup/internal/ui"
	"github.com/temirov/gittyup/internal/updater"
)

const (
	reportFinishErrorTemplateConstant = "unable to write report: %w"
	runStartedMessageConstant         = "update run started"
	runFinishedMessageConstant        = "update run finished"
	logFieldRootConstant              = "root"
	logFieldStrategyConstant          = "strategy"
	logFieldWorkersConstant           = "max_workers"
	logFieldDryRunConstant            = "dry_run"
	logFieldFoundConstant             = "repos_found"
	logFieldFailedConstant            = "repos_failed"
	logFieldInterruptedConstant       = "interrupted"
	logFieldExitCodeConstant          = "exit_code"
)

type updatePipeline struct {
	scanner      *discovery.Scanner
	orchestrator *orchestrator.Orchestrator
	reporter     report.Reporter
}

func (application *Application) runUpdate(command *cobra.Command) error {
	resolution, resolutionError := application.resolution(command.Context())
	if resolutionError != nil {
		return resolutionError
	}
	configuration := resolution.Config
	logger := application.logger

	if verificationError := application.toolVerifier(execshell.CommandGit); verificationError != nil {
		return systemError(verificationError)
	}

	pipeline, pipelineError := application.buildUpdatePipeline(command, configuration)
	if pipelineError != nil {
		return systemError(pipelineError)
	}

	runContext, stopSignals := signal.NotifyContext(command.Context(), application.signals...)
	defer stopSignals()

	logger.Info(
		runStartedMessageConstant,
		zap.String(logFieldRootConstant, configuration.Root),
		zap.String(logFieldStrategyConstant, string(configuration.Strategy)),
		zap.Int(logFieldWorkersConstant, configuration.MaxWorkers),
		zap.Bool(logFieldDryRunConstant, configuration.DryRun),
	)

	startedAt := application.clock.Now()
	pipeline.reporter.Start()

	run := pipeline.orchestrator.Start(runContext, pipeline.scanner.Scan(runContext, configuration.Root))
	completions := make([]orchestrator.Completion, 0)
	for completion := range run.Completions() {
		pipeline.reporter.RepositoryCompleted(completion.Status)
		completions = append(completions, completion)
	}

	runReport := aggregate.Aggregate(completions, application.clock.Now().Sub(startedAt), run.Interrupted())
	runReport.Summary.DryRun = configuration.DryRun
	if finishError := pipeline.reporter.Finish(runReport); finishError != nil {
		return systemError(fmt.Errorf(reportFinishErrorTemplateConstant, finishError))
	}

	exitCode := runReport.ExitCode()
	logger.Info(
		runFinishedMessageConstant,
		zap.Int(logFieldFoundConstant, runReport.Summary.ReposFound),
		zap.Int(logFieldFailedConstant, runReport.Summary.ReposFailed),
		zap.Bool(logFieldInterruptedConstant, runReport.Summary.Interrupted),
		zap.Int(logFieldExitCodeConstant, exitCode),
	)

	if exitCode != aggregate.ExitCodeSuccess {
		return ExitError{Code: exitCode}
	}
	return nil
}

func (application *Application) buildUpdatePipeline(command *cobra.Command, configuration config.ScanConfig) (updatePipeline, error) {
	logger := application.logger

	executorOptions := []execshell.ExecutorOption{execshell.WithCommandTimeout(configuration.CommandTimeout)}
	if configuration.Verbose && application.humanReadableLoggingEnabled() {
		executorOptions = append(executorOptions, execshell.WithCommandEventObserver(ui.NewConsoleCommandEventLogger(logger)))
	}

	gitExecutor, executorError := dependencies.ResolveGitExecutor(nil, logger, application.commandRunner, executorOptions...)
	if executorError != nil {
		return updatePipeline{}, executorError
	}

	repositoryManager, managerError := dependencies.ResolveGitRepositoryManager(nil, gitExecutor)
	if managerError != nil {
		return updatePipeline{}, managerError
	}

	repositoryUpdater, updaterError := updater.NewUpdater(
		updater.Dependencies{RepositoryManager: repositoryManager, Logger: logger},
		updater.Options{
			Strategy:            configuration.Strategy,
			DirtyWorktreePolicy: configuration.DirtyWorktreePolicy(),
			DryRun:              configuration.DryRun,
		},
	)
	if updaterError != nil {
		return updatePipeline{}, updaterError
	}

	repositoryOrchestrator, orchestratorError := orchestrator.NewOrchestrator(
		orchestrator.Dependencies{Updater: repositoryUpdater, Logger: logger},
		orchestrator.Options{MaxWorkers: configuration.MaxWorkers},
	)
	if orchestratorError != nil {
		return updatePipeline{}, orchestratorError
	}

	standardOutput := command.OutOrStdout()
	reporter, reporterError := report.New(configuration.Format, standardOutput, report.Options{
		Root:    configuration.Root,
		Verbose: configuration.Verbose,
		Quiet:   configuration.Quiet,
		Color:   report.ColorEnabled(standardOutput, configuration.NoColor),
		DryRun:  configuration.DryRun,
	})
	if reporterError != nil {
		return updatePipeline{}, reporterError
	}

	scanner := discovery.NewScanner(
		discovery.WithMaxDepth(configuration.MaxDepth),
		discovery.WithExcludePatterns(configuration.Exclude),
		discovery.WithLogger(logger),
	)

	return updatePipeline{scanner: scanner, orchestrator: repositoryOrchestrator, reporter: reporter}, nil
}
