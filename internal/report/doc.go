// Package report renders run results for people and for machines.
//
// TextReporter streams one line per repository as results arrive and closes
// with a summary. JSONReporter and YAMLReporter buffer nothing but the final
// aggregate.Report and emit it as a single document.
package report
