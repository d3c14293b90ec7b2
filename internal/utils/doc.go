// Package utils exposes reusable helpers consumed by the CLI.
//
// It houses ConfigurationLoader, which decodes individual YAML sources through
// Viper and mapstructure, and LoggerFactory, which builds the zap loggers every
// package receives.
package utils
