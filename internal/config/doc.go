// Package config resolves the effective ScanConfig for a run.
//
// Values are merged field by field from four sources in decreasing priority:
// command-line overrides, the local ./.gittyup.yaml (or an explicit --config
// file), the user file ~/.config/gittyup/config.yaml, and the embedded
// defaults. Problems inside a configuration file never abort a run; they are
// returned as SourceError diagnostics and the offending source or field is
// ignored. Invalid command-line values are reported as ValidationError.
package config
