// Package cli builds the gittyup command-line interface. The root command
// resolves configuration from defaults, configuration files, and flags, then
// scans a directory tree for git repositories and updates them through a
// bounded worker pool. The config show and list subcommands expose the
// resolved configuration and the discovered repositories without running git.
package cli
