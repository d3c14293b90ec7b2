package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/temirov/gittyup/internal/aggregate"
	"github.com/temirov/gittyup/internal/config"
	"github.com/temirov/gittyup/internal/repos/shared"
)

// ErrWriterNotConfigured indicates a reporter was created without an output writer.
var ErrWriterNotConfigured = errors.New("report writer not configured")

// Reporter presents the progress and outcome of a run.
type Reporter interface {
	// Start announces the run before any repository completes.
	Start()
	// RepositoryCompleted observes one repository as soon as it settles.
	RepositoryCompleted(status shared.RepoStatus)
	// Finish presents the aggregated report in discovery order.
	Finish(runReport aggregate.Report) error
}

// Options carries the presentation settings shared by every reporter.
type Options struct {
	Root    string
	Verbose bool
	Quiet   bool
	Color   bool
	DryRun  bool
}

// New constructs the reporter for the requested format.
func New(format config.OutputFormat, writer io.Writer, options Options) (Reporter, error) {
	if writer == nil {
		return nil, ErrWriterNotConfigured
	}
	switch format {
	case config.OutputFormatText, "":
		return NewTextReporter(writer, options), nil
	case config.OutputFormatJSON:
		return NewJSONReporter(writer), nil
	case config.OutputFormatYAML:
		return NewYAMLReporter(writer), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownOutputFormat, format)
	}
}
