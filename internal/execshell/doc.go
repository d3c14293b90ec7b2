// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging and per-command timeouts via ShellExecutor,
// exposes OSCommandRunner for default process execution, and defines the
// typed errors gittyup uses to classify git failures.
package execshell
