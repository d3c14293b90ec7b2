package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/gittyup/internal/config"
	"github.com/temirov/gittyup/internal/execshell"
	"github.com/temirov/gittyup/internal/repos/shared"
	"github.com/temirov/gittyup/internal/utils"
	flagutils "github.com/temirov/gittyup/internal/utils/flags"
	pathutils "github.com/temirov/gittyup/internal/utils/path"
)

const (
	applicationUseConstant                = "gittyup [path]"
	applicationShortDescriptionConstant   = "Update every git repository beneath a directory"
	applicationLongDescriptionConstant    = "gittyup discovers git repositories beneath a root directory and brings each one up to date with its upstream using pull, fetch, or rebase."
	versionTemplateConstant               = "{{.Name}} version: {{.Version}}\n"
	dryRunFlagNameConstant                = "dry-run"
	dryRunFlagShorthandConstant           = "n"
	dryRunFlagUsageConstant               = "Report what would be done without changing any repository."
	maxDepthFlagNameConstant              = "max-depth"
	maxDepthFlagUsageConstant             = "Maximum directory depth below the root to search (0 inspects the root only; unlimited unless configured)."
	excludeFlagNameConstant               = "exclude"
	excludeFlagUsageConstant              = "Directory name or glob pattern to skip while scanning (repeatable)."
	excludeOnlyFlagNameConstant           = "exclude-only"
	excludeOnlyFlagUsageConstant          = "Use only the --exclude patterns, discarding configured exclusions."
	strategyFlagNameConstant              = "strategy"
	strategyFlagUsageConstant             = "How each repository is brought up to date."
	stashFlagNameConstant                 = "stash"
	stashFlagUsageConstant                = "Stash uncommitted changes around the update instead of skipping dirty repositories."
	workersFlagNameConstant               = "workers"
	workersFlagShorthandConstant          = "j"
	workersFlagUsageConstant              = "Maximum number of repositories updated concurrently."
	sequentialFlagNameConstant            = "sequential"
	sequentialFlagUsageConstant           = "Update one repository at a time (same as --workers 1)."
	timeoutFlagNameConstant               = "timeout"
	timeoutFlagUsageConstant              = "Time limit for each git command (for example 90s or 2m)."
	noConfigFlagNameConstant              = "no-config"
	noConfigFlagUsageConstant             = "Ignore the user and local configuration files."
	configFileFlagNameConstant            = "config"
	configFileFlagUsageConstant           = "Read this configuration file instead of ./" + config.LocalConfigurationFileName + "."
	wordyFlagNameConstant                 = "wordy"
	wordyFlagShorthandConstant            = "w"
	wordyFlagUsageConstant                = "Show failure details and pulled commit counts; repeat to log git commands."
	quietFlagNameConstant                 = "quiet"
	quietFlagShorthandConstant            = "q"
	quietFlagUsageConstant                = "Print only failures and the summary."
	noColorFlagNameConstant               = "no-color"
	noColorFlagUsageConstant              = "Disable coloured output."
	formatFlagNameConstant                = "format"
	formatFlagUsageConstant               = "Report format."
	logLevelFlagNameConstant              = "log-level"
	logLevelFlagUsageConstant             = "Diagnostic log level written to standard error."
	logFormatFlagNameConstant             = "log-format"
	logFormatFlagUsageConstant            = "Diagnostic log encoding."
	commandLoggingWordyLevelConstant      = 2
	debugLoggingWordyLevelConstant        = 3
	sequentialWorkerCountConstant         = 1
	workersFieldNameConstant              = "workers"
	sequentialWorkersConflictConstant     = "cannot combine --sequential with --workers"
	configurationInitializedMessage       = "configuration initialized"
	configurationLogLevelFieldConstant    = "log_level"
	configurationLogFormatFieldConstant   = "log_format"
	configurationSourcesFieldConstant     = "configuration_sources"
	configurationDiagnosticsFieldConstant = "configuration_diagnostics"
	loggerCreationErrorTemplateConstant   = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant       = "unable to flush logger: %w"
	configurationUnavailableMessage       = "configuration not initialized"
	defaultVersionConstant                = "dev"
	defaultLogLevelConstant               = utils.LogLevelWarn
	defaultLogFormatConstant              = utils.LogFormatConsole
	defaultStrategyChoiceConstant         = string(shared.UpdateStrategyPull)
	defaultFormatChoiceConstant           = string(config.OutputFormatText)
	defaultTimeoutDisplayConstant         = 0 * time.Second
	defaultMaxDepthDisplayConstant        = 0
	defaultWorkersDisplayConstant         = 0
)

// Version is the release identifier reported by --version. Release builds override it with -ldflags.
var Version = defaultVersionConstant

var errConfigurationUnavailable = errors.New(configurationUnavailableMessage)

// ToolVerifier confirms that an external executable is available.
type ToolVerifier func(name execshell.CommandName) error

// ApplicationOption customizes an Application.
type ApplicationOption func(*Application)

// WithWorkingDirectory sets the directory used to resolve relative paths and the local configuration file.
func WithWorkingDirectory(workingDirectory string) ApplicationOption {
	return func(application *Application) {
		application.workingDirectory = workingDirectory
	}
}

// WithHomeExpander sets the expander used for ~ in paths.
func WithHomeExpander(homeExpander *pathutils.HomeExpander) ApplicationOption {
	return func(application *Application) {
		if homeExpander != nil {
			application.homeExpander = homeExpander
		}
	}
}

// WithCommandRunner replaces the os/exec runner used for git commands.
func WithCommandRunner(runner execshell.CommandRunner) ApplicationOption {
	return func(application *Application) {
		application.commandRunner = runner
	}
}

// WithToolVerifier replaces the PATH lookup performed before updating.
func WithToolVerifier(verifier ToolVerifier) ApplicationOption {
	return func(application *Application) {
		if verifier != nil {
			application.toolVerifier = verifier
		}
	}
}

// WithClock replaces the time source used to measure run duration.
func WithClock(clock shared.Clock) ApplicationOption {
	return func(application *Application) {
		if clock != nil {
			application.clock = clock
		}
	}
}

// WithLogger fixes the diagnostic logger instead of building one from --log-level and --log-format.
func WithLogger(logger *zap.Logger) ApplicationOption {
	return func(application *Application) {
		application.fixedLogger = logger
	}
}

// WithSignals replaces the signals that interrupt a run.
func WithSignals(signals ...os.Signal) ApplicationOption {
	return func(application *Application) {
		application.signals = signals
	}
}

type flagValues struct {
	dryRun      bool
	maxDepth    int
	exclude     []string
	excludeOnly bool
	strategy    *flagutils.ChoiceValue
	stash       bool
	workers     int
	sequential  bool
	timeout     time.Duration
	noConfig    bool
	configPath  string
	wordy       int
	quiet       bool
	noColor     bool
	format      *flagutils.ChoiceValue
	logLevel    *flagutils.ChoiceValue
	logFormat   *flagutils.ChoiceValue
}

// Application wires the Cobra command hierarchy, configuration resolution, and structured logger.
type Application struct {
	rootCommand      *cobra.Command
	loggerFactory    *utils.LoggerFactory
	logger           *zap.Logger
	fixedLogger      *zap.Logger
	logFormat        utils.LogFormat
	contextAccessor  config.ContextAccessor
	homeExpander     *pathutils.HomeExpander
	workingDirectory string
	commandRunner    execshell.CommandRunner
	toolVerifier     ToolVerifier
	clock            shared.Clock
	signals          []os.Signal
	flagValues       flagValues
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication(options ...ApplicationOption) *Application {
	application := &Application{
		loggerFactory:   utils.NewLoggerFactory(),
		logger:          zap.NewNop(),
		logFormat:       defaultLogFormatConstant,
		contextAccessor: config.NewContextAccessor(),
		homeExpander:    pathutils.NewHomeExpander(),
		toolVerifier:    execshell.EnsureToolAvailable,
		clock:           shared.SystemClock{},
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	for _, option := range options {
		if option != nil {
			option(application)
		}
	}

	cobraCommand := &cobra.Command{
		Use:           applicationUseConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command, arguments)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runUpdate(command)
		},
	}
	cobraCommand.SetVersionTemplate(versionTemplateConstant)
	cobraCommand.SetContext(context.Background())

	application.registerFlags(cobraCommand.PersistentFlags())

	loggerProvider := func() *zap.Logger {
		return application.logger
	}
	resolutionProvider := func(executionContext context.Context) (config.Resolution, error) {
		return application.resolution(executionContext)
	}

	configBuilder := ConfigCommandBuilder{ResolutionProvider: resolutionProvider}
	configCommand, configBuildError := configBuilder.Build()
	if configBuildError == nil {
		cobraCommand.AddCommand(configCommand)
	}

	listBuilder := ListCommandBuilder{LoggerProvider: loggerProvider, ResolutionProvider: resolutionProvider}
	listCommand, listBuildError := listBuilder.Build()
	if listBuildError == nil {
		cobraCommand.AddCommand(listCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

func (application *Application) registerFlags(flagSet *pflag.FlagSet) {
	values := &application.flagValues
	values.strategy = flagutils.NewChoiceValue(defaultStrategyChoiceConstant, shared.UpdateStrategyNames())
	values.format = flagutils.NewChoiceValue(defaultFormatChoiceConstant, config.OutputFormatNames())
	values.logLevel = flagutils.NewChoiceValue(string(defaultLogLevelConstant), utils.LogLevelNames())
	values.logFormat = flagutils.NewChoiceValue(string(defaultLogFormatConstant), utils.LogFormatNames())

	flagSet.BoolVarP(&values.dryRun, dryRunFlagNameConstant, dryRunFlagShorthandConstant, false, dryRunFlagUsageConstant)
	flagSet.IntVar(&values.maxDepth, maxDepthFlagNameConstant, defaultMaxDepthDisplayConstant, maxDepthFlagUsageConstant)
	flagSet.StringArrayVar(&values.exclude, excludeFlagNameConstant, nil, excludeFlagUsageConstant)
	flagSet.BoolVar(&values.excludeOnly, excludeOnlyFlagNameConstant, false, excludeOnlyFlagUsageConstant)
	flagSet.Var(values.strategy, strategyFlagNameConstant, values.strategy.Usage(strategyFlagUsageConstant))
	flagSet.BoolVar(&values.stash, stashFlagNameConstant, false, stashFlagUsageConstant)
	flagSet.IntVarP(&values.workers, workersFlagNameConstant, workersFlagShorthandConstant, defaultWorkersDisplayConstant, workersFlagUsageConstant)
	flagSet.BoolVar(&values.sequential, sequentialFlagNameConstant, false, sequentialFlagUsageConstant)
	flagSet.DurationVar(&values.timeout, timeoutFlagNameConstant, defaultTimeoutDisplayConstant, timeoutFlagUsageConstant)
	flagSet.BoolVar(&values.noConfig, noConfigFlagNameConstant, false, noConfigFlagUsageConstant)
	flagSet.StringVar(&values.configPath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	flagSet.CountVarP(&values.wordy, wordyFlagNameConstant, wordyFlagShorthandConstant, wordyFlagUsageConstant)
	flagSet.BoolVarP(&values.quiet, quietFlagNameConstant, quietFlagShorthandConstant, false, quietFlagUsageConstant)
	flagSet.BoolVar(&values.noColor, noColorFlagNameConstant, false, noColorFlagUsageConstant)
	flagSet.Var(values.format, formatFlagNameConstant, values.format.Usage(formatFlagUsageConstant))
	flagSet.Var(values.logLevel, logLevelFlagNameConstant, values.logLevel.Usage(logLevelFlagUsageConstant))
	flagSet.Var(values.logFormat, logFormatFlagNameConstant, values.logFormat.Usage(logFormatFlagUsageConstant))
}

// Execute runs the command hierarchy with the supplied arguments and ensures logger flushing.
func (application *Application) Execute(executionContext context.Context, arguments []string) error {
	if arguments == nil {
		arguments = []string{}
	}
	application.rootCommand.SetArgs(arguments)
	executionError := application.rootCommand.ExecuteContext(executionContext)
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	if executionError == nil {
		return nil
	}
	var exitError ExitError
	if errors.As(executionError, &exitError) {
		return exitError
	}
	return inputError(executionError)
}

// SetOutput redirects the report stream and the error stream; logs follow the error stream.
func (application *Application) SetOutput(standardOutput io.Writer, standardError io.Writer) {
	application.rootCommand.SetOut(standardOutput)
	application.rootCommand.SetErr(standardError)
	application.loggerFactory = utils.NewLoggerFactory(utils.WithLogOutput(standardError))
}

// Execute builds a fresh application instance and runs it with the process arguments.
func Execute(executionContext context.Context) error {
	return NewApplication().Execute(executionContext, os.Args[1:])
}

func (application *Application) initializeConfiguration(command *cobra.Command, arguments []string) error {
	logger, loggerError := application.createLogger(command)
	if loggerError != nil {
		return inputError(loggerError)
	}
	application.logger = logger

	overrides, overridesError := application.collectOverrides(command, arguments)
	if overridesError != nil {
		return inputError(overridesError)
	}

	resolver := config.NewResolver(
		logger,
		config.WithWorkingDirectory(application.workingDirectory),
		config.WithHomeExpander(application.homeExpander),
	)
	resolution, resolveError := resolver.Resolve(overrides)
	if resolveError != nil {
		return inputError(resolveError)
	}

	application.logger.Debug(
		configurationInitializedMessage,
		zap.String(configurationLogLevelFieldConstant, application.flagValues.logLevel.String()),
		zap.String(configurationLogFormatFieldConstant, string(application.logFormat)),
		zap.Int(configurationSourcesFieldConstant, len(resolution.LoadedSources)),
		zap.Int(configurationDiagnosticsFieldConstant, len(resolution.Diagnostics)),
	)

	updatedContext := application.contextAccessor.WithResolution(command.Context(), resolution)
	command.SetContext(updatedContext)
	if rootCommand := command.Root(); rootCommand != nil {
		rootCommand.SetContext(updatedContext)
	}

	return nil
}

func (application *Application) createLogger(command *cobra.Command) (*zap.Logger, error) {
	logFormat, formatError := utils.ParseLogFormat(application.flagValues.logFormat.String())
	if formatError != nil {
		return nil, fmt.Errorf(loggerCreationErrorTemplateConstant, formatError)
	}
	application.logFormat = logFormat

	logLevel, levelError := utils.ParseLogLevel(application.flagValues.logLevel.String())
	if levelError != nil {
		return nil, fmt.Errorf(loggerCreationErrorTemplateConstant, levelError)
	}
	if application.fixedLogger != nil {
		return application.fixedLogger, nil
	}
	if !application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		switch {
		case application.flagValues.wordy >= debugLoggingWordyLevelConstant:
			logLevel = utils.LogLevelDebug
		case application.flagValues.wordy >= commandLoggingWordyLevelConstant:
			logLevel = utils.LogLevelInfo
		}
	}

	logger, creationError := application.loggerFactory.CreateLogger(logLevel, logFormat)
	if creationError != nil {
		return nil, fmt.Errorf(loggerCreationErrorTemplateConstant, creationError)
	}
	return logger, nil
}

func (application *Application) collectOverrides(command *cobra.Command, arguments []string) (config.Overrides, error) {
	values := application.flagValues
	overrides := config.Overrides{
		ConfigFilePath:  values.configPath,
		SkipConfigFiles: values.noConfig,
		Exclude:         values.exclude,
		ExcludeOnly:     values.excludeOnly,
	}
	if len(arguments) > 0 {
		overrides.Root = arguments[0]
	}

	if application.persistentFlagChanged(command, maxDepthFlagNameConstant) {
		maxDepth := values.maxDepth
		overrides.MaxDepth = &maxDepth
	}
	if application.persistentFlagChanged(command, strategyFlagNameConstant) {
		strategy := values.strategy.String()
		overrides.Strategy = &strategy
	}
	if application.persistentFlagChanged(command, stashFlagNameConstant) {
		stash := values.stash
		overrides.Stash = &stash
	}

	workersChanged := application.persistentFlagChanged(command, workersFlagNameConstant)
	if values.sequential && workersChanged {
		return config.Overrides{}, config.ValidationError{Field: workersFieldNameConstant, Message: sequentialWorkersConflictConstant}
	}
	switch {
	case values.sequential:
		workers := sequentialWorkerCountConstant
		overrides.MaxWorkers = &workers
	case workersChanged:
		workers := values.workers
		overrides.MaxWorkers = &workers
	}

	if application.persistentFlagChanged(command, timeoutFlagNameConstant) {
		timeout := values.timeout
		overrides.CommandTimeout = &timeout
	}
	if application.persistentFlagChanged(command, formatFlagNameConstant) {
		format := values.format.String()
		overrides.Format = &format
	}
	if values.wordy > 0 {
		verbose := true
		overrides.Verbose = &verbose
	}
	if application.persistentFlagChanged(command, quietFlagNameConstant) {
		quiet := values.quiet
		overrides.Quiet = &quiet
	}
	if application.persistentFlagChanged(command, noColorFlagNameConstant) {
		noColor := values.noColor
		overrides.NoColor = &noColor
	}
	if application.persistentFlagChanged(command, dryRunFlagNameConstant) {
		dryRun := values.dryRun
		overrides.DryRun = &dryRun
	}

	return overrides, nil
}

func (application *Application) resolution(executionContext context.Context) (config.Resolution, error) {
	resolution, available := application.contextAccessor.Resolution(executionContext)
	if !available {
		return config.Resolution{}, inputError(errConfigurationUnavailable)
	}
	return resolution, nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	return strings.EqualFold(string(application.logFormat), string(utils.LogFormatConsole))
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
