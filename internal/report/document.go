package report

import (
	"encoding/json"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/temirov/gittyup/internal/aggregate"
	"github.com/temirov/gittyup/internal/repos/shared"
)

const (
	jsonIndentConstant              = "  "
	yamlIndentConstant              = 2
	durationPrecisionFactorConstant = 1000
)

// Document is the machine-readable form of a run report.
type Document struct {
	Summary      SummaryDocument      `json:"summary" yaml:"summary"`
	Repositories []RepositoryDocument `json:"repositories" yaml:"repositories"`
}

// SummaryDocument mirrors aggregate.SummaryStats.
type SummaryDocument struct {
	ReposFound      int     `json:"repos_found" yaml:"repos_found"`
	ReposUpdated    int     `json:"repos_updated" yaml:"repos_updated"`
	ReposSkipped    int     `json:"repos_skipped" yaml:"repos_skipped"`
	ReposFailed     int     `json:"repos_failed" yaml:"repos_failed"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	Interrupted     bool    `json:"interrupted" yaml:"interrupted"`
	DryRun          bool    `json:"dry_run" yaml:"dry_run"`
}

// RepositoryDocument mirrors shared.RepoStatus. Branch and Error are null when absent.
type RepositoryDocument struct {
	Path                  string  `json:"path" yaml:"path"`
	State                 string  `json:"state" yaml:"state"`
	Branch                *string `json:"branch" yaml:"branch"`
	Message               string  `json:"message" yaml:"message"`
	Error                 *string `json:"error" yaml:"error"`
	HasUncommittedChanges bool    `json:"has_uncommitted_changes" yaml:"has_uncommitted_changes"`
	CommitsPulled         int     `json:"commits_pulled" yaml:"commits_pulled"`
}

// NewDocument converts an aggregated report into its serializable form.
func NewDocument(runReport aggregate.Report) Document {
	summary := runReport.Summary
	document := Document{
		Summary: SummaryDocument{
			ReposFound:      summary.ReposFound,
			ReposUpdated:    summary.ReposUpdated,
			ReposSkipped:    summary.ReposSkipped,
			ReposFailed:     summary.ReposFailed,
			DurationSeconds: math.Round(summary.DurationSeconds*durationPrecisionFactorConstant) / durationPrecisionFactorConstant,
			Interrupted:     summary.Interrupted,
			DryRun:          summary.DryRun,
		},
		Repositories: make([]RepositoryDocument, 0, len(runReport.Repositories)),
	}
	for _, status := range runReport.Repositories {
		document.Repositories = append(document.Repositories, newRepositoryDocument(status))
	}
	return document
}

func newRepositoryDocument(status shared.RepoStatus) RepositoryDocument {
	repositoryDocument := RepositoryDocument{
		Path:                  status.Path,
		State:                 string(status.State),
		Message:               status.Message,
		HasUncommittedChanges: status.HasUncommittedChanges,
		CommitsPulled:         status.CommitsPulled,
	}
	if len(status.Branch) > 0 {
		branch := status.Branch
		repositoryDocument.Branch = &branch
	}
	if status.Error != nil {
		renderedError := status.Error.Error()
		repositoryDocument.Error = &renderedError
	}
	return repositoryDocument
}

// JSONReporter writes the report as one indented JSON document.
type JSONReporter struct {
	writer io.Writer
}

// NewJSONReporter constructs a JSONReporter writing to writer.
func NewJSONReporter(writer io.Writer) *JSONReporter {
	return &JSONReporter{writer: writer}
}

// Start is a no-op; JSON output is written once.
func (reporter *JSONReporter) Start() {}

// RepositoryCompleted is a no-op; JSON output is written once.
func (reporter *JSONReporter) RepositoryCompleted(shared.RepoStatus) {}

// Finish writes the document.
func (reporter *JSONReporter) Finish(runReport aggregate.Report) error {
	encoder := json.NewEncoder(reporter.writer)
	encoder.SetIndent("", jsonIndentConstant)
	return encoder.Encode(NewDocument(runReport))
}

// YAMLReporter writes the report as one YAML document.
type YAMLReporter struct {
	writer io.Writer
}

// NewYAMLReporter constructs a YAMLReporter writing to writer.
func NewYAMLReporter(writer io.Writer) *YAMLReporter {
	return &YAMLReporter{writer: writer}
}

// Start is a no-op; YAML output is written once.
func (reporter *YAMLReporter) Start() {}

// RepositoryCompleted is a no-op; YAML output is written once.
func (reporter *YAMLReporter) RepositoryCompleted(shared.RepoStatus) {}

// Finish writes the document.
func (reporter *YAMLReporter) Finish(runReport aggregate.Report) error {
	encoder := yaml.NewEncoder(reporter.writer)
	encoder.SetIndent(yamlIndentConstant)
	if encodeError := encoder.Encode(NewDocument(runReport)); encodeError != nil {
		return encodeError
	}
	return encoder.Close()
}
