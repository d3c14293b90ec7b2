package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/temirov/gittyup/internal/aggregate"
	"github.com/temirov/gittyup/internal/repos/shared"
)

const (
	successGlyphConstant            = "✓"
	skippedGlyphConstant            = "⊘"
	failedGlyphConstant             = "✗"
	headerTemplateConstant          = "gittyup: %s\n"
	updatingSectionConstant         = "Updating repositories..."
	dryRunSectionConstant           = "Dry run (no changes will be made):"
	repositoryLineTemplateConstant  = "%s %s%s: %s\n"
	branchTemplateConstant          = " (%s)"
	detailLineTemplateConstant      = "    %s\n"
	commitsLineTemplateConstant     = "    %d %s pulled\n"
	dirtyNoteLineConstant           = "    had uncommitted changes before update\n"
	summaryTemplateConstant         = "Summary: %d found, %d updated, %d skipped, %d failed in %.1fs\n"
	dryRunSummarySuffixConstant     = " (dry run)"
	noRepositoriesMessageConstant   = "No git repositories found.\n"
	interruptedMessageConstant      = "Interrupted: remaining repositories were not processed.\n"
	currentDirectoryDisplayConstant = "."
	commitSingularConstant          = "commit"
	commitPluralConstant            = "commits"
	parentDirectoryPrefixConstant   = ".."
)

// TextReporter writes a human-readable, optionally colored, progress log.
type TextReporter struct {
	writer       io.Writer
	options      Options
	successColor *color.Color
	skippedColor *color.Color
	failedColor  *color.Color
	headerColor  *color.Color
	dimColor     *color.Color
}

// NewTextReporter constructs a TextReporter writing to writer.
func NewTextReporter(writer io.Writer, options Options) *TextReporter {
	reporter := &TextReporter{
		writer:       writer,
		options:      options,
		successColor: color.New(color.FgGreen, color.Bold),
		skippedColor: color.New(color.FgYellow, color.Bold),
		failedColor:  color.New(color.FgRed, color.Bold),
		headerColor:  color.New(color.FgBlue, color.Bold),
		dimColor:     color.New(color.FgHiBlack),
	}
	for _, palette := range []*color.Color{reporter.successColor, reporter.skippedColor, reporter.failedColor, reporter.headerColor, reporter.dimColor} {
		if options.Color {
			palette.EnableColor()
		} else {
			palette.DisableColor()
		}
	}
	return reporter
}

// Start prints the run header unless quiet.
func (reporter *TextReporter) Start() {
	if reporter.options.Quiet {
		return
	}
	_, _ = reporter.headerColor.Fprintf(reporter.writer, headerTemplateConstant, reporter.options.Root)
	section := updatingSectionConstant
	if reporter.options.DryRun {
		section = dryRunSectionConstant
	}
	_, _ = fmt.Fprintln(reporter.writer, section)
}

// RepositoryCompleted is a no-op; Finish lists repositories in discovery order
// so the output does not depend on which worker finished first.
func (reporter *TextReporter) RepositoryCompleted(shared.RepoStatus) {}

// Finish prints one result line per repository, then the summary line.
// Quiet mode lists failures only.
func (reporter *TextReporter) Finish(runReport aggregate.Report) error {
	for _, status := range runReport.Repositories {
		if reporter.options.Quiet && !status.Failed() {
			continue
		}
		if writeError := reporter.writeRepository(status); writeError != nil {
			return writeError
		}
	}

	summary := runReport.Summary
	if summary.ReposFound == 0 && !summary.Interrupted && !reporter.options.Quiet {
		if _, writeError := fmt.Fprint(reporter.writer, noRepositoriesMessageConstant); writeError != nil {
			return writeError
		}
	}

	summaryLine := fmt.Sprintf(summaryTemplateConstant, summary.ReposFound, summary.ReposUpdated, summary.ReposSkipped, summary.ReposFailed, summary.DurationSeconds)
	if summary.DryRun {
		summaryLine = strings.TrimSuffix(summaryLine, "\n") + dryRunSummarySuffixConstant + "\n"
	}
	if _, writeError := reporter.headerColor.Fprint(reporter.writer, summaryLine); writeError != nil {
		return writeError
	}
	if summary.Interrupted {
		if _, writeError := reporter.failedColor.Fprint(reporter.writer, interruptedMessageConstant); writeError != nil {
			return writeError
		}
	}
	return nil
}

func (reporter *TextReporter) writeRepository(status shared.RepoStatus) error {
	glyph := reporter.successColor.Sprint(successGlyphConstant)
	switch status.State {
	case shared.RepositoryStateSkipped:
		glyph = reporter.skippedColor.Sprint(skippedGlyphConstant)
	case shared.RepositoryStateFailed:
		glyph = reporter.failedColor.Sprint(failedGlyphConstant)
	}

	branch := ""
	if len(status.Branch) > 0 {
		branch = fmt.Sprintf(branchTemplateConstant, status.Branch)
	}
	if _, writeError := fmt.Fprintf(reporter.writer, repositoryLineTemplateConstant, glyph, reporter.displayPath(status.Path), branch, status.Message); writeError != nil {
		return writeError
	}
	if !reporter.options.Verbose {
		return nil
	}

	if status.Error != nil {
		for _, detailLine := range strings.Split(status.Error.Error(), "\n") {
			if _, writeError := reporter.dimColor.Fprintf(reporter.writer, detailLineTemplateConstant, detailLine); writeError != nil {
				return writeError
			}
		}
	}
	if status.CommitsPulled > 0 {
		if _, writeError := reporter.dimColor.Fprintf(reporter.writer, commitsLineTemplateConstant, status.CommitsPulled, pluralizeCommits(status.CommitsPulled)); writeError != nil {
			return writeError
		}
	}
	if status.HasUncommittedChanges && status.State != shared.RepositoryStateSkipped {
		if _, writeError := reporter.dimColor.Fprint(reporter.writer, dirtyNoteLineConstant); writeError != nil {
			return writeError
		}
	}
	return nil
}

func (reporter *TextReporter) displayPath(repositoryPath string) string {
	if len(reporter.options.Root) == 0 {
		return repositoryPath
	}
	relativePath, relativeError := filepath.Rel(reporter.options.Root, repositoryPath)
	if relativeError != nil || strings.HasPrefix(relativePath, parentDirectoryPrefixConstant) {
		return repositoryPath
	}
	if relativePath == currentDirectoryDisplayConstant {
		return filepath.Base(repositoryPath)
	}
	return relativePath
}

func pluralizeCommits(count int) string {
	if count == 1 {
		return commitSingularConstant
	}
	return commitPluralConstant
}
