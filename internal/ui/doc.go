// Package ui translates git command lifecycle events into concise console log
// lines so verbose runs show what each repository is doing while detailed
// telemetry continues to flow through structured loggers.
package ui
