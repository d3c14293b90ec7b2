// Package aggregate folds repository completions into a run report and derives the process exit code.
package aggregate

import (
	"sort"
	"time"

	"github.com/temirov/gittyup/internal/orchestrator"
	"github.com/temirov/gittyup/internal/repos/shared"
)

// Process exit codes.
const (
	ExitCodeSuccess        = 0
	ExitCodeInputError     = 1
	ExitCodePartialFailure = 2
	ExitCodeTotalFailure   = 3
	ExitCodeInterrupted    = 130
)

// SummaryStats counts repository outcomes for one run.
type SummaryStats struct {
	ReposFound      int
	ReposUpdated    int
	ReposSkipped    int
	ReposFailed     int
	DurationSeconds float64
	Interrupted     bool
	DryRun          bool
}

// Report is the ordered outcome of a run.
type Report struct {
	Summary      SummaryStats
	Repositories []shared.RepoStatus
}

// Aggregate orders completions by discovery sequence and counts their states.
func Aggregate(completions []orchestrator.Completion, duration time.Duration, interrupted bool) Report {
	ordered := make([]orchestrator.Completion, len(completions))
	copy(ordered, completions)
	sort.SliceStable(ordered, func(left int, right int) bool {
		return ordered[left].Sequence < ordered[right].Sequence
	})

	report := Report{
		Summary: SummaryStats{
			DurationSeconds: duration.Seconds(),
			Interrupted:     interrupted,
		},
		Repositories: make([]shared.RepoStatus, 0, len(ordered)),
	}
	for _, completion := range ordered {
		report.Repositories = append(report.Repositories, completion.Status)
		report.Summary.ReposFound++
		switch completion.Status.State {
		case shared.RepositoryStateSuccess:
			report.Summary.ReposUpdated++
		case shared.RepositoryStateSkipped:
			report.Summary.ReposSkipped++
		default:
			report.Summary.ReposFailed++
		}
	}
	return report
}

// ExitCode maps the report to the process exit status.
func (report Report) ExitCode() int {
	switch {
	case report.Summary.Interrupted:
		return ExitCodeInterrupted
	case report.Summary.ReposFailed == 0:
		return ExitCodeSuccess
	case report.Summary.ReposUpdated > 0:
		return ExitCodePartialFailure
	default:
		return ExitCodeTotalFailure
	}
}
