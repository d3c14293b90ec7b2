package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/temirov/gittyup/internal/repos/shared"
)

const (
	sourceErrorTemplateConstant         = "%s configuration %s: %v"
	sourceErrorWithoutPathTemplate      = "%s configuration: %v"
	validationErrorTemplateConstant     = "invalid %s: %s"
	unknownOutputFormatTemplateConstant = "%w: %q (expected text, json, or yaml)"
	invalidInputMessageConstant         = "invalid input"
	unknownOutputFormatMessageConstant  = "unknown output format"
)

// ErrInvalidInput is matched by every ValidationError.
var ErrInvalidInput = errors.New(invalidInputMessageConstant)

// ErrUnknownOutputFormat indicates a report format outside the supported set.
var ErrUnknownOutputFormat = errors.New(unknownOutputFormatMessageConstant)

// OutputFormat selects how the run report is rendered.
type OutputFormat string

// Supported report formats.
const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat normalizes a report format name case-insensitively.
func ParseOutputFormat(raw string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case OutputFormatText:
		return OutputFormatText, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	case OutputFormatYAML:
		return OutputFormatYAML, nil
	default:
		return "", fmt.Errorf(unknownOutputFormatTemplateConstant, ErrUnknownOutputFormat, raw)
	}
}

// OutputFormatNames lists the supported report formats in display order.
func OutputFormatNames() []string {
	return []string{string(OutputFormatText), string(OutputFormatJSON), string(OutputFormatYAML)}
}

// ScanConfig is the fully resolved, immutable configuration of a run.
type ScanConfig struct {
	Root           string                `yaml:"root"`
	MaxDepth       *int                  `yaml:"max_depth"`
	Exclude        []string              `yaml:"exclude"`
	Strategy       shared.UpdateStrategy `yaml:"strategy"`
	Stash          bool                  `yaml:"stash"`
	MaxWorkers     int                   `yaml:"max_workers"`
	Format         OutputFormat          `yaml:"format"`
	Verbose        bool                  `yaml:"verbose"`
	Quiet          bool                  `yaml:"quiet"`
	NoColor        bool                  `yaml:"no_color"`
	DryRun         bool                  `yaml:"dry_run"`
	CommandTimeout time.Duration         `yaml:"timeout"`
}

// DirtyWorktreePolicy derives the dirty-repository handling from the stash setting.
func (configuration ScanConfig) DirtyWorktreePolicy() shared.DirtyWorktreePolicy {
	return shared.DirtyWorktreePolicyFromBool(configuration.Stash)
}

// Overrides carries command-line values. Nil pointers mean "not set on the command line".
type Overrides struct {
	Root            string
	ConfigFilePath  string
	SkipConfigFiles bool
	MaxDepth        *int
	Exclude         []string
	ExcludeOnly     bool
	Strategy        *string
	Stash           *bool
	MaxWorkers      *int
	Format          *string
	Verbose         *bool
	Quiet           *bool
	NoColor         *bool
	DryRun          *bool
	CommandTimeout  *time.Duration
}

// SourceName identifies where a configuration value came from.
type SourceName string

// Configuration sources in increasing priority.
const (
	SourceDefaults SourceName = "defaults"
	SourceUser     SourceName = "user"
	SourceLocal    SourceName = "local"
	SourceCLI      SourceName = "cli"
)

// SourceError is a recoverable problem with one configuration source.
type SourceError struct {
	Source SourceName
	Path   string
	Cause  error
}

func (sourceError SourceError) Error() string {
	if len(sourceError.Path) == 0 {
		return fmt.Sprintf(sourceErrorWithoutPathTemplate, sourceError.Source, sourceError.Cause)
	}
	return fmt.Sprintf(sourceErrorTemplateConstant, sourceError.Source, sourceError.Path, sourceError.Cause)
}

// Unwrap exposes the underlying cause.
func (sourceError SourceError) Unwrap() error {
	return sourceError.Cause
}

// ValidationError reports an invalid command-line value.
type ValidationError struct {
	Field   string
	Message string
}

func (validationError ValidationError) Error() string {
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.Field, validationError.Message)
}

// Unwrap exposes ErrInvalidInput for errors.Is.
func (validationError ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// LoadedSource records a configuration file that contributed to the resolution.
type LoadedSource struct {
	Source SourceName `yaml:"source"`
	Path   string     `yaml:"path"`
}

// Resolution is the outcome of resolving configuration.
type Resolution struct {
	Config        ScanConfig
	LoadedSources []LoadedSource
	Diagnostics   []SourceError
}

// fileSettings mirrors the keys accepted in configuration files.
type fileSettings struct {
	MaxDepth        *int           `mapstructure:"max_depth"`
	Exclude         []string       `mapstructure:"exclude"`
	ExcludeOverride *bool          `mapstructure:"exclude_override"`
	Strategy        *string        `mapstructure:"strategy"`
	StashBeforePull *bool          `mapstructure:"stash_before_pull"`
	Stash           *bool          `mapstructure:"stash"`
	MaxWorkers      *int           `mapstructure:"max_workers"`
	Verbose         *bool          `mapstructure:"verbose"`
	NoColor         *bool          `mapstructure:"no_color"`
	Format          *string        `mapstructure:"format"`
	Timeout         *time.Duration `mapstructure:"timeout"`
}
