package cmdutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// ErrNotStarted is wrapped by errors from commands that never got a process,
// for example because the executable is missing or the working directory is gone.
var ErrNotStarted = errors.New("command did not start")

// ExecOptions configures command execution.
type ExecOptions struct {
	// Dir is the working directory for the command.
	Dir string

	// Timeout is the maximum execution time.
	// If zero, no timeout is applied. Start ignores it.
	Timeout time.Duration

	// Env contains environment variables for the command.
	// Each entry should be in the form "KEY=value".
	Env []string

	// CombinedOutput determines if stdout and stderr are combined.
	CombinedOutput bool
}

// Result contains the result of a command execution.
type Result struct {
	// Stdout is the standard output (only if CombinedOutput is false).
	Stdout []byte

	// Stderr is the standard error (only if CombinedOutput is false).
	Stderr []byte

	// Output is the combined stdout and stderr (only if CombinedOutput is true).
	Output []byte

	// ExitCode is the exit code of the command.
	ExitCode int

	// Duration is how long the command took to execute.
	Duration time.Duration
}

// Run executes a command with the given options and waits for it to finish.
// The command is provided as a slice of arguments (command and its arguments)
// and is never passed through a shell.
func Run(ctx context.Context, opts ExecOptions, cmdParts []string) (*Result, error) {
	if len(cmdParts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, cmdParts[0], cmdParts[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	start := time.Now()

	var result Result
	var err error

	if opts.CombinedOutput {
		result.Output, err = cmd.CombinedOutput()
	} else {
		result.Stdout, err = cmd.Output()
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.Stderr = exitErr.Stderr
		}
	}

	result.Duration = time.Since(start)

	if cmd.ProcessState == nil {
		if err == nil {
			err = errors.New("no process state")
		}
		return &result, fmt.Errorf("%w: %w", ErrNotStarted, err)
	}
	result.ExitCode = cmd.ProcessState.ExitCode()

	if err != nil {
		return &result, fmt.Errorf("command failed: %w", err)
	}

	return &result, nil
}

// Process is a command running in the background. Its stdout and stderr are
// collected into one buffer that becomes readable once the process exits.
type Process struct {
	Args []string
	Dir  string
	Pid  int

	started time.Time
	output  bytes.Buffer
	done    chan struct{}
	result  *Result
	err     error
}

// Start launches a command without waiting for it. The returned Process
// reports completion through Done and Wait. There is no timeout and no way to
// cancel the process from here.
func Start(opts ExecOptions, cmdParts []string) (*Process, error) {
	if len(cmdParts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.Command(cmdParts[0], cmdParts[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	p := &Process{
		Args: cmdParts,
		Dir:  opts.Dir,
		done: make(chan struct{}),
	}
	// Same writer for both streams: exec serializes the writes.
	cmd.Stdout = &p.output
	cmd.Stderr = &p.output

	p.started = time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotStarted, err)
	}
	p.Pid = cmd.Process.Pid

	go func() {
		defer close(p.done)
		err := cmd.Wait()
		p.result = &Result{
			Output:   p.output.Bytes(),
			Duration: time.Since(p.started),
		}
		if cmd.ProcessState != nil {
			p.result.ExitCode = cmd.ProcessState.ExitCode()
		}
		if err != nil {
			p.err = fmt.Errorf("command failed: %w", err)
		}
	}()

	return p, nil
}

// Done returns a channel that is closed when the process has exited and its
// output has been fully collected.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its result.
func (p *Process) Wait() (*Result, error) {
	<-p.done
	return p.result, p.err
}

// ParseCommandString parses a shell-quoted command string into parts.
//
// Example:
//
//	"git pull --ff-only" -> ["git", "pull", "--ff-only"]
func ParseCommandString(cmdStr string) ([]string, error) {
	parts, err := shellquote.Split(cmdStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command string: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command string")
	}
	return parts, nil
}

// ParseCommandList parses a command that can be either a string or a list.
// This handles the two formats accepted in YAML configuration:
//   - String format: "git pull --ff-only"
//   - List format: ["git", "pull", "--ff-only"]
func ParseCommandList(cmd interface{}) ([]string, error) {
	switch v := cmd.(type) {
	case string:
		return ParseCommandString(v)
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("command list item %d is not a string: %T", i, item)
			}
			parts[i] = str
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("empty command list")
		}
		return parts, nil
	case []string:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty command list")
		}
		return v, nil
	default:
		return nil, fmt.Errorf("invalid command type: %T (must be string or list)", cmd)
	}
}

// FormatCommand formats command parts into a readable string for logging.
// Example: ["bash", "/srv/hooks/deploy me.sh"] -> "bash '/srv/hooks/deploy me.sh'"
func FormatCommand(cmdParts []string) string {
	if len(cmdParts) == 0 {
		return "<empty command>"
	}

	quoted := make([]string, len(cmdParts))
	for i, part := range cmdParts {
		if strings.ContainsAny(part, " \t\n\"'") {
			quoted[i] = shellquote.Join(part)
		} else {
			quoted[i] = part
		}
	}

	return strings.Join(quoted, " ")
}
