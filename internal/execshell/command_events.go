package execshell

// CommandEventObserver receives lifecycle notifications for git, gh and poetry invocations.
type CommandEventObserver interface {
	CommandStarted(command ShellCommand)
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports a process that could not be started or awaited.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// commandEventBroadcaster forwards each event to every registered observer in registration order.
type commandEventBroadcaster []CommandEventObserver

func newCommandEventBroadcaster(observers []CommandEventObserver) commandEventBroadcaster {
	broadcaster := make(commandEventBroadcaster, 0, len(observers))
	for _, observer := range observers {
		if observer != nil {
			broadcaster = append(broadcaster, observer)
		}
	}
	return broadcaster
}

func (broadcaster commandEventBroadcaster) CommandStarted(command ShellCommand) {
	for _, observer := range broadcaster {
		observer.CommandStarted(command)
	}
}

func (broadcaster commandEventBroadcaster) CommandCompleted(command ShellCommand, result ExecutionResult) {
	for _, observer := range broadcaster {
		observer.CommandCompleted(command, result)
	}
}

func (broadcaster commandEventBroadcaster) CommandExecutionFailed(command ShellCommand, failure error) {
	for _, observer := range broadcaster {
		observer.CommandExecutionFailed(command, failure)
	}
}
