package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gittyup/internal/config"
)

const (
	configCommandUseConstant              = "config"
	configCommandShortDescriptionConstant = "Inspect the effective configuration"
	configShowUseConstant                 = "show [path]"
	configShowShortDescriptionConstant    = "Print the merged configuration and any ignored configuration values"
	configShowLongDescriptionConstant     = "show resolves built-in defaults, the user file, the local file, and command-line flags exactly as an update run would, then prints the result as YAML."
	configurationYAMLIndentConstant       = 2
)

var errResolutionProviderMissing = errors.New("configuration provider not configured")

// ResolutionProvider returns the configuration resolved for the running command.
type ResolutionProvider func(executionContext context.Context) (config.Resolution, error)

type configurationDocument struct {
	Config      config.ScanConfig     `yaml:"config"`
	Sources     []config.LoadedSource `yaml:"sources"`
	Diagnostics []string              `yaml:"diagnostics"`
}

// ConfigCommandBuilder assembles the config command group.
type ConfigCommandBuilder struct {
	ResolutionProvider ResolutionProvider
}

// Build constructs the config command and its show subcommand.
func (builder *ConfigCommandBuilder) Build() (*cobra.Command, error) {
	if builder.ResolutionProvider == nil {
		return nil, errResolutionProviderMissing
	}

	configCommand := &cobra.Command{
		Use:   configCommandUseConstant,
		Short: configCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
	}

	showCommand := &cobra.Command{
		Use:   configShowUseConstant,
		Short: configShowShortDescriptionConstant,
		Long:  configShowLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.runShow,
	}
	configCommand.AddCommand(showCommand)

	return configCommand, nil
}

func (builder *ConfigCommandBuilder) runShow(command *cobra.Command, _ []string) error {
	resolution, resolutionError := builder.ResolutionProvider(command.Context())
	if resolutionError != nil {
		return resolutionError
	}

	document := configurationDocument{
		Config:      resolution.Config,
		Sources:     resolution.LoadedSources,
		Diagnostics: make([]string, 0, len(resolution.Diagnostics)),
	}
	if document.Sources == nil {
		document.Sources = []config.LoadedSource{}
	}
	for _, diagnostic := range resolution.Diagnostics {
		document.Diagnostics = append(document.Diagnostics, diagnostic.Error())
	}

	encoder := yaml.NewEncoder(command.OutOrStdout())
	encoder.SetIndent(configurationYAMLIndentConstant)
	if encodeError := encoder.Encode(document); encodeError != nil {
		return systemError(encodeError)
	}
	return systemErrorOrNil(encoder.Close())
}

func systemErrorOrNil(cause error) error {
	if cause == nil {
		return nil
	}
	return systemError(cause)
}
