package execshell

// CommandEventObserver is notified as each command moves through its lifecycle.
type CommandEventObserver interface {
	// CommandStarted fires before the process is launched.
	CommandStarted(command ShellCommand)
	// CommandCompleted fires once the process exits, whatever its exit code.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed fires when no result exists: the process could not run or was killed by the timeout.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// commandEventObservers fans every event out to the registered observers in registration order.
type commandEventObservers []CommandEventObserver

func (observers commandEventObservers) CommandStarted(command ShellCommand) {
	for _, observer := range observers {
		observer.CommandStarted(command)
	}
}

func (observers commandEventObservers) CommandCompleted(command ShellCommand, result ExecutionResult) {
	for _, observer := range observers {
		observer.CommandCompleted(command, result)
	}
}

func (observers commandEventObservers) CommandExecutionFailed(command ShellCommand, failure error) {
	for _, observer := range observers {
		observer.CommandExecutionFailed(command, failure)
	}
}
