package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gittyup/internal/repos/shared"
	"github.com/temirov/gittyup/internal/utils"
	pathutils "github.com/temirov/gittyup/internal/utils/path"
)

const (
	// LocalConfigurationFileName is the per-directory configuration file read from the working directory.
	LocalConfigurationFileName = ".gittyup.yaml"
	// UserConfigurationFilePath is the per-user configuration file.
	UserConfigurationFilePath = "~/.config/gittyup/config.yaml"

	configurationTypeConstant             = "yaml"
	defaultRootPathConstant               = "."
	defaultsDecodeErrorTemplateConstant   = "embedded defaults are invalid: %w"
	workingDirectoryErrorTemplateConstant = "unable to determine working directory: %w"
	rootAbsoluteErrorTemplateConstant     = "unable to resolve %s: %v"
	fieldValueErrorTemplateConstant       = "%s: %w"
	negativeDepthMessageConstant          = "must be zero or greater"
	workerCountMessageConstant            = "must be at least 1"
	timeoutMessageConstant                = "must be a positive duration"
	rootMissingMessageTemplateConstant    = "%s does not exist"
	rootNotDirectoryMessageTemplate       = "%s is not a directory"
	quietVerboseConflictMessageConstant   = "cannot combine --quiet with --wordy"
	badExcludePatternMessageTemplate      = "malformed pattern %q"
	explicitConfigMissingTemplateConstant = "%s does not exist"
	sourceIgnoredLogMessageConstant       = "configuration source ignored"
	fieldIgnoredLogMessageConstant        = "configuration value ignored"
	configurationResolvedLogMessage       = "configuration resolved"
	logFieldSourceConstant                = "source"
	logFieldPathConstant                  = "path"
	logFieldRootConstant                  = "root"
	logFieldStrategyConstant              = "strategy"
	logFieldWorkersConstant               = "max_workers"
	logFieldExcludeCountConstant          = "exclude_count"
	fieldNameMaxDepthConstant             = "max_depth"
	fieldNameMaxWorkersConstant           = "max_workers"
	fieldNameStrategyConstant             = "strategy"
	fieldNameFormatConstant               = "format"
	fieldNameTimeoutConstant              = "timeout"
	fieldNameExcludeConstant              = "exclude"
	fieldNameRootConstant                 = "path"
	fieldNameConfigConstant               = "config"
	fieldNameVerbosityConstant            = "verbosity"
)

var (
	errNegativeDepth  = errors.New(negativeDepthMessageConstant)
	errWorkerCount    = errors.New(workerCountMessageConstant)
	errInvalidTimeout = errors.New(timeoutMessageConstant)
)

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithWorkingDirectory sets the directory searched for the local configuration file.
func WithWorkingDirectory(workingDirectory string) ResolverOption {
	return func(resolver *Resolver) {
		resolver.workingDirectory = workingDirectory
	}
}

// WithHomeExpander sets the expander used for ~ in the user configuration path and CLI paths.
func WithHomeExpander(homeExpander *pathutils.HomeExpander) ResolverOption {
	return func(resolver *Resolver) {
		if homeExpander != nil {
			resolver.homeExpander = homeExpander
		}
	}
}

// Resolver merges configuration sources into a ScanConfig.
type Resolver struct {
	logger           *zap.Logger
	loader           *utils.ConfigurationLoader
	homeExpander     *pathutils.HomeExpander
	workingDirectory string
}

// NewResolver constructs a Resolver. A nil logger discards diagnostics.
func NewResolver(logger *zap.Logger, options ...ResolverOption) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := &Resolver{
		logger:       logger,
		loader:       utils.NewConfigurationLoader(configurationTypeConstant, utils.NumericSecondsToDurationHookFunc()),
		homeExpander: pathutils.NewHomeExpander(),
	}
	for _, option := range options {
		if option != nil {
			option(resolver)
		}
	}
	return resolver
}

type settingsLayer struct {
	source   SourceName
	path     string
	settings fileSettings
}

// Resolve merges overrides, configuration files, and defaults into a ScanConfig.
func (resolver *Resolver) Resolve(overrides Overrides) (Resolution, error) {
	resolution := Resolution{}

	defaultSettings := fileSettings{}
	if _, decodeError := resolver.loader.LoadEmbedded(EmbeddedDefaultConfiguration(), &defaultSettings); decodeError != nil {
		return Resolution{}, fmt.Errorf(defaultsDecodeErrorTemplateConstant, decodeError)
	}
	layers := []settingsLayer{{source: SourceDefaults, settings: defaultSettings}}

	if !overrides.SkipConfigFiles {
		fileLayers, fileError := resolver.loadFileLayers(overrides, &resolution)
		if fileError != nil {
			return Resolution{}, fileError
		}
		layers = append(layers, fileLayers...)
	}

	configuration := ScanConfig{}
	for _, layer := range layers {
		resolver.applyLayer(&configuration, layer, &resolution)
	}

	if applyError := resolver.applyOverrides(&configuration, overrides); applyError != nil {
		return Resolution{}, applyError
	}

	resolution.Config = configuration

	resolver.logger.Debug(
		configurationResolvedLogMessage,
		zap.String(logFieldRootConstant, configuration.Root),
		zap.String(logFieldStrategyConstant, string(configuration.Strategy)),
		zap.Int(logFieldWorkersConstant, configuration.MaxWorkers),
		zap.Int(logFieldExcludeCountConstant, len(configuration.Exclude)),
	)

	return resolution, nil
}

func (resolver *Resolver) loadFileLayers(overrides Overrides, resolution *Resolution) ([]settingsLayer, error) {
	layers := make([]settingsLayer, 0, 2)

	userPath := resolver.homeExpander.Expand(UserConfigurationFilePath)
	if userPath != UserConfigurationFilePath {
		if layer, loaded := resolver.loadLayer(SourceUser, userPath, resolution); loaded {
			layers = append(layers, layer)
		}
	}

	localPath := ""
	if len(strings.TrimSpace(overrides.ConfigFilePath)) > 0 {
		localPath = resolver.homeExpander.Expand(strings.TrimSpace(overrides.ConfigFilePath))
		if !filepath.IsAbs(localPath) && len(resolver.workingDirectory) > 0 {
			localPath = filepath.Join(resolver.workingDirectory, localPath)
		}
		if _, statError := os.Stat(localPath); statError != nil {
			return nil, ValidationError{Field: fieldNameConfigConstant, Message: fmt.Sprintf(explicitConfigMissingTemplateConstant, localPath)}
		}
	} else {
		workingDirectory := resolver.workingDirectory
		if len(workingDirectory) == 0 {
			currentDirectory, workingDirectoryError := os.Getwd()
			if workingDirectoryError != nil {
				return nil, fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
			}
			workingDirectory = currentDirectory
		}
		localPath = filepath.Join(workingDirectory, LocalConfigurationFileName)
	}

	if layer, loaded := resolver.loadLayer(SourceLocal, localPath, resolution); loaded {
		layers = append(layers, layer)
	}

	return layers, nil
}

func (resolver *Resolver) loadLayer(source SourceName, path string, resolution *Resolution) (settingsLayer, bool) {
	settings := fileSettings{}
	metadata, loadError := resolver.loader.LoadFile(path, &settings)
	if loadError != nil {
		if errors.Is(loadError, utils.ErrConfigurationFileNotFound) {
			return settingsLayer{}, false
		}
		resolver.recordDiagnostic(resolution, SourceError{Source: source, Path: path, Cause: loadError}, sourceIgnoredLogMessageConstant)
		return settingsLayer{}, false
	}

	resolution.LoadedSources = append(resolution.LoadedSources, LoadedSource{Source: source, Path: metadata.ConfigFileUsed})
	return settingsLayer{source: source, path: path, settings: settings}, true
}

func (resolver *Resolver) applyLayer(configuration *ScanConfig, layer settingsLayer, resolution *Resolution) {
	settings := layer.settings
	reject := func(field string, cause error) {
		resolver.recordDiagnostic(resolution, SourceError{Source: layer.source, Path: layer.path, Cause: fmt.Errorf(fieldValueErrorTemplateConstant, field, cause)}, fieldIgnoredLogMessageConstant)
	}

	if settings.MaxDepth != nil {
		if *settings.MaxDepth < 0 {
			reject(fieldNameMaxDepthConstant, errNegativeDepth)
		} else {
			depth := *settings.MaxDepth
			configuration.MaxDepth = &depth
		}
	}

	if settings.Strategy != nil {
		strategy, parseError := shared.ParseUpdateStrategy(*settings.Strategy)
		if parseError != nil {
			reject(fieldNameStrategyConstant, parseError)
		} else {
			configuration.Strategy = strategy
		}
	}

	switch {
	case settings.Stash != nil:
		configuration.Stash = *settings.Stash
	case settings.StashBeforePull != nil:
		configuration.Stash = *settings.StashBeforePull
	}

	if settings.MaxWorkers != nil {
		if *settings.MaxWorkers < 1 {
			reject(fieldNameMaxWorkersConstant, errWorkerCount)
		} else {
			configuration.MaxWorkers = *settings.MaxWorkers
		}
	}

	if settings.Verbose != nil {
		configuration.Verbose = *settings.Verbose
	}
	if settings.NoColor != nil {
		configuration.NoColor = *settings.NoColor
	}

	if settings.Format != nil {
		format, parseError := ParseOutputFormat(*settings.Format)
		if parseError != nil {
			reject(fieldNameFormatConstant, parseError)
		} else {
			configuration.Format = format
		}
	}

	if settings.Timeout != nil {
		if *settings.Timeout <= 0 {
			reject(fieldNameTimeoutConstant, errInvalidTimeout)
		} else {
			configuration.CommandTimeout = *settings.Timeout
		}
	}

	validPatterns := make([]string, 0, len(settings.Exclude))
	for _, pattern := range settings.Exclude {
		trimmedPattern := strings.TrimSpace(pattern)
		if len(trimmedPattern) == 0 {
			continue
		}
		if _, matchError := filepath.Match(trimmedPattern, ""); matchError != nil {
			reject(fieldNameExcludeConstant, fmt.Errorf(badExcludePatternMessageTemplate, trimmedPattern))
			continue
		}
		validPatterns = append(validPatterns, trimmedPattern)
	}
	replaceExcludes := settings.ExcludeOverride != nil && *settings.ExcludeOverride
	configuration.Exclude = mergeExcludes(configuration.Exclude, validPatterns, replaceExcludes)
}

func (resolver *Resolver) applyOverrides(configuration *ScanConfig, overrides Overrides) error {
	rootPath, rootError := resolver.resolveRoot(overrides.Root)
	if rootError != nil {
		return rootError
	}
	configuration.Root = rootPath

	if overrides.MaxDepth != nil {
		if *overrides.MaxDepth < 0 {
			return ValidationError{Field: fieldNameMaxDepthConstant, Message: negativeDepthMessageConstant}
		}
		depth := *overrides.MaxDepth
		configuration.MaxDepth = &depth
	}

	if overrides.Strategy != nil {
		strategy, parseError := shared.ParseUpdateStrategy(*overrides.Strategy)
		if parseError != nil {
			return ValidationError{Field: fieldNameStrategyConstant, Message: parseError.Error()}
		}
		configuration.Strategy = strategy
	}

	if overrides.Stash != nil {
		configuration.Stash = *overrides.Stash
	}

	if overrides.MaxWorkers != nil {
		if *overrides.MaxWorkers < 1 {
			return ValidationError{Field: fieldNameMaxWorkersConstant, Message: workerCountMessageConstant}
		}
		configuration.MaxWorkers = *overrides.MaxWorkers
	}

	if overrides.Format != nil {
		format, parseError := ParseOutputFormat(*overrides.Format)
		if parseError != nil {
			return ValidationError{Field: fieldNameFormatConstant, Message: parseError.Error()}
		}
		configuration.Format = format
	}

	if overrides.CommandTimeout != nil {
		if *overrides.CommandTimeout <= 0 {
			return ValidationError{Field: fieldNameTimeoutConstant, Message: timeoutMessageConstant}
		}
		configuration.CommandTimeout = *overrides.CommandTimeout
	}

	cliQuiet := overrides.Quiet != nil && *overrides.Quiet
	cliVerbose := overrides.Verbose != nil && *overrides.Verbose
	if cliQuiet && cliVerbose {
		return ValidationError{Field: fieldNameVerbosityConstant, Message: quietVerboseConflictMessageConstant}
	}
	if overrides.Verbose != nil {
		configuration.Verbose = *overrides.Verbose
	}
	if cliQuiet {
		configuration.Quiet = true
		configuration.Verbose = false
	}

	if overrides.NoColor != nil {
		configuration.NoColor = *overrides.NoColor
	}
	if overrides.DryRun != nil {
		configuration.DryRun = *overrides.DryRun
	}

	cliPatterns := make([]string, 0, len(overrides.Exclude))
	for _, pattern := range overrides.Exclude {
		trimmedPattern := strings.TrimSpace(pattern)
		if len(trimmedPattern) == 0 {
			continue
		}
		if _, matchError := filepath.Match(trimmedPattern, ""); matchError != nil {
			return ValidationError{Field: fieldNameExcludeConstant, Message: fmt.Sprintf(badExcludePatternMessageTemplate, trimmedPattern)}
		}
		cliPatterns = append(cliPatterns, trimmedPattern)
	}
	configuration.Exclude = mergeExcludes(configuration.Exclude, cliPatterns, overrides.ExcludeOnly)

	if configuration.Exclude == nil {
		configuration.Exclude = []string{}
	}

	return nil
}

func (resolver *Resolver) resolveRoot(rawRoot string) (string, error) {
	trimmedRoot := strings.TrimSpace(rawRoot)
	if len(trimmedRoot) == 0 {
		trimmedRoot = defaultRootPathConstant
	}
	expandedRoot := resolver.homeExpander.Expand(trimmedRoot)
	if !filepath.IsAbs(expandedRoot) && len(resolver.workingDirectory) > 0 {
		expandedRoot = filepath.Join(resolver.workingDirectory, expandedRoot)
	}

	absoluteRoot, absoluteError := filepath.Abs(expandedRoot)
	if absoluteError != nil {
		return "", ValidationError{Field: fieldNameRootConstant, Message: fmt.Sprintf(rootAbsoluteErrorTemplateConstant, trimmedRoot, absoluteError)}
	}

	rootInfo, statError := os.Stat(absoluteRoot)
	if statError != nil {
		return "", ValidationError{Field: fieldNameRootConstant, Message: fmt.Sprintf(rootMissingMessageTemplateConstant, absoluteRoot)}
	}
	if !rootInfo.IsDir() {
		return "", ValidationError{Field: fieldNameRootConstant, Message: fmt.Sprintf(rootNotDirectoryMessageTemplate, absoluteRoot)}
	}

	return absoluteRoot, nil
}

func (resolver *Resolver) recordDiagnostic(resolution *Resolution, diagnostic SourceError, logMessage string) {
	resolution.Diagnostics = append(resolution.Diagnostics, diagnostic)
	resolver.logger.Warn(
		logMessage,
		zap.String(logFieldSourceConstant, string(diagnostic.Source)),
		zap.String(logFieldPathConstant, diagnostic.Path),
		zap.Error(diagnostic.Cause),
	)
}

func mergeExcludes(existing []string, additions []string, replace bool) []string {
	base := existing
	if replace {
		base = nil
	}
	merged := make([]string, 0, len(base)+len(additions))
	seen := make(map[string]struct{}, len(base)+len(additions))
	for _, pattern := range append(append([]string{}, base...), additions...) {
		if _, exists := seen[pattern]; exists {
			continue
		}
		seen[pattern] = struct{}{}
		merged = append(merged, pattern)
	}
	return merged
}
