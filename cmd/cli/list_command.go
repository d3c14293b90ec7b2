package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gittyup/internal/repos/dependencies"
	"github.com/temirov/gittyup/internal/repos/discovery"
	"github.com/temirov/gittyup/internal/repos/shared"
)

const (
	listCommandUseConstant              = "list [path]"
	listCommandShortDescriptionConstant = "List the repositories an update run would visit"
	listCommandLongDescriptionConstant  = "list scans the root directory with the configured depth limit and exclusions and prints one repository path per line without running git."
	listDiscoveryErrorTemplateConstant  = "unable to list repositories: %w"
	listedRepositoriesMessageConstant   = "repositories listed"
	listLogFieldCountConstant           = "repository_count"
)

var errListResolutionProviderMissing = errors.New("list: configuration provider not configured")

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ListCommandBuilder assembles the list command.
type ListCommandBuilder struct {
	LoggerProvider     LoggerProvider
	ResolutionProvider ResolutionProvider
	Discoverer         shared.RepositoryDiscoverer
}

// Build constructs the list command.
func (builder *ListCommandBuilder) Build() (*cobra.Command, error) {
	if builder.ResolutionProvider == nil {
		return nil, errListResolutionProviderMissing
	}

	return &cobra.Command{
		Use:   listCommandUseConstant,
		Short: listCommandShortDescriptionConstant,
		Long:  listCommandLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.run,
	}, nil
}

func (builder *ListCommandBuilder) run(command *cobra.Command, _ []string) error {
	resolution, resolutionError := builder.ResolutionProvider(command.Context())
	if resolutionError != nil {
		return resolutionError
	}
	configuration := resolution.Config
	logger := builder.resolveLogger()

	discoverer := dependencies.ResolveRepositoryDiscoverer(
		builder.Discoverer,
		discovery.WithMaxDepth(configuration.MaxDepth),
		discovery.WithExcludePatterns(configuration.Exclude),
		discovery.WithLogger(logger),
	)

	repositories, discoveryError := discoverer.DiscoverRepositories([]string{configuration.Root})
	if discoveryError != nil {
		return systemError(fmt.Errorf(listDiscoveryErrorTemplateConstant, discoveryError))
	}

	for _, repositoryPath := range repositories {
		if _, writeError := fmt.Fprintln(command.OutOrStdout(), repositoryPath); writeError != nil {
			return systemError(writeError)
		}
	}

	logger.Debug(listedRepositoriesMessageConstant, zap.Int(listLogFieldCountConstant, len(repositories)))
	return nil
}

func (builder *ListCommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
