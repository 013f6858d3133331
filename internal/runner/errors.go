package runner

import (
	"fmt"
	"strings"

	"autopull/pkg/cmdutil"
)

// CommandFailedError is returned when a pull exits with a non-zero status.
// Output holds everything the command printed.
type CommandFailedError struct {
	Target   string
	Command  []string
	ExitCode int
	Output   string
}

func (e *CommandFailedError) Error() string {
	msg := fmt.Sprintf("Command '%s' in %s returned non-zero exit status %d",
		cmdutil.FormatCommand(e.Command), e.Target, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// LaunchFailedError is returned when a process could not be started at all,
// for example because the interpreter or git binary is missing.
type LaunchFailedError struct {
	Target  string
	Command []string
	Err     error
}

func (e *LaunchFailedError) Error() string {
	return fmt.Sprintf("Failed to launch '%s' for %s: %v", cmdutil.FormatCommand(e.Command), e.Target, e.Err)
}

func (e *LaunchFailedError) Unwrap() error {
	return e.Err
}
