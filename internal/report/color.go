package report

import (
	"io"
	"os"

	"golang.org/x/term"
)

const (
	noColorEnvironmentVariableConstant = "NO_COLOR"
)

type fileDescriptor interface {
	Fd() uintptr
}

// ColorEnabled decides whether output written to writer should be colored.
// Color is off when disabled by configuration, when NO_COLOR is set, or when writer is not a terminal.
func ColorEnabled(writer io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	if _, noColorSet := os.LookupEnv(noColorEnvironmentVariableConstant); noColorSet {
		return false
	}
	descriptor, isFile := writer.(fileDescriptor)
	if !isFile {
		return false
	}
	return term.IsTerminal(int(descriptor.Fd()))
}
