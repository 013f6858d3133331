package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"autopull/internal/mapping"
	"autopull/pkg/cmdutil"
)

const (
	// DefaultPullTimeout bounds a single pull.
	DefaultPullTimeout = 5 * time.Minute

	// DefaultInterpreter runs script targets.
	DefaultInterpreter = "bash"
)

// DefaultPullCommand is run inside every directory target in pull mode.
var DefaultPullCommand = []string{"git", "pull"}

// Options configures how targets are executed.
type Options struct {
	// PullCommand is the argv run in each directory target.
	PullCommand []string

	// Interpreter is the argv prefix used to run script targets; the script
	// path is appended as the last argument.
	Interpreter []string

	// PullTimeout bounds each pull. Zero means DefaultPullTimeout.
	PullTimeout time.Duration

	// SerializePulls makes concurrent pulls of the same directory wait for
	// each other.
	SerializePulls bool
}

// ExecutionResult is the combined output and exit status of one pull.
type ExecutionResult struct {
	Target     string
	ReturnCode int
	Output     string
	Duration   time.Duration
}

// OK reports a zero exit status.
func (r *ExecutionResult) OK() bool {
	return r.ReturnCode == 0
}

// Executor runs pull commands and launches scripts for resolved targets.
type Executor struct {
	opts   Options
	locks  *LockManager
	logger *slog.Logger
}

// NewExecutor creates an executor, filling unset options with defaults.
func NewExecutor(opts Options, logger *slog.Logger) *Executor {
	if len(opts.PullCommand) == 0 {
		opts.PullCommand = DefaultPullCommand
	}
	if len(opts.Interpreter) == 0 {
		opts.Interpreter = []string{DefaultInterpreter}
	}
	if opts.PullTimeout <= 0 {
		opts.PullTimeout = DefaultPullTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		opts:   opts,
		locks:  NewLockManager(),
		logger: logger,
	}
}

// Options returns the effective options.
func (e *Executor) Options() Options {
	return e.opts
}

// Pull runs the pull command inside target.Dir and waits for it.
// A non-zero exit yields a *CommandFailedError; a command that could not be
// started yields a *LaunchFailedError.
func (e *Executor) Pull(ctx context.Context, target mapping.Target) (*ExecutionResult, error) {
	if e.opts.SerializePulls {
		if !e.locks.TryLock(target.Dir) {
			e.logger.Info("Waiting for running pull", "key", target.Key, "dir", target.Dir)
			if err := e.locks.Lock(ctx, target.Dir); err != nil {
				return nil, fmt.Errorf("waiting for lock on %s: %w", target.Dir, err)
			}
		}
		defer e.locks.Unlock(target.Dir)
	}

	command := e.opts.PullCommand
	e.logger.Debug("Running pull", "key", target.Key, "dir", target.Dir, "command", cmdutil.FormatCommand(command))

	result, err := cmdutil.Run(ctx, cmdutil.ExecOptions{
		Dir:            target.Dir,
		Timeout:        e.opts.PullTimeout,
		CombinedOutput: true,
	}, command)

	execResult := &ExecutionResult{Target: target.Path}
	if result != nil {
		execResult.ReturnCode = result.ExitCode
		execResult.Output = string(result.Output)
		execResult.Duration = result.Duration
	}

	if err != nil {
		if errors.Is(err, cmdutil.ErrNotStarted) {
			return execResult, &LaunchFailedError{Target: target.Path, Command: command, Err: err}
		}
		return execResult, &CommandFailedError{
			Target:   target.Path,
			Command:  command,
			ExitCode: execResult.ReturnCode,
			Output:   execResult.Output,
		}
	}

	return execResult, nil
}

// PullAll pulls every target in order and concatenates their outputs, each
// trimmed of surrounding whitespace and terminated by a single newline.
// The first failure stops the sequence.
func (e *Executor) PullAll(ctx context.Context, targets []mapping.Target) (string, error) {
	var out strings.Builder
	for _, target := range targets {
		result, err := e.Pull(ctx, target)
		if err != nil {
			return out.String(), err
		}
		e.logger.Info("Pull completed", "key", target.Key, "dir", target.Dir,
			"duration_ms", result.Duration.Milliseconds())
		out.WriteString(strings.TrimSpace(result.Output))
		out.WriteString("\n")
	}
	return out.String(), nil
}

// Launch starts the interpreter on target.Path with target.Dir as working
// directory and returns without waiting.
func (e *Executor) Launch(target mapping.Target) (*cmdutil.Process, error) {
	command := make([]string, 0, len(e.opts.Interpreter)+1)
	command = append(command, e.opts.Interpreter...)
	command = append(command, target.Path)

	proc, err := cmdutil.Start(cmdutil.ExecOptions{Dir: target.Dir}, command)
	if err != nil {
		return nil, &LaunchFailedError{Target: target.Path, Command: command, Err: err}
	}

	e.logger.Info("Launched script", "key", target.Key, "script", target.Path, "pid", proc.Pid)
	return proc, nil
}

// LaunchAll launches every target in order. On failure it returns the
// processes already started together with the error, so the caller can still
// drain them.
func (e *Executor) LaunchAll(targets []mapping.Target) ([]*cmdutil.Process, error) {
	procs := make([]*cmdutil.Process, 0, len(targets))
	for _, target := range targets {
		proc, err := e.Launch(target)
		if err != nil {
			return procs, err
		}
		procs = append(procs, proc)
	}
	return procs, nil
}

// Drain waits for each process in order and logs its combined output between
// banner lines. It returns one result per process.
func (e *Executor) Drain(procs []*cmdutil.Process) []*ExecutionResult {
	results := make([]*ExecutionResult, 0, len(procs))
	for _, proc := range procs {
		res, err := proc.Wait()

		execResult := &ExecutionResult{Target: proc.Args[len(proc.Args)-1]}
		if res != nil {
			execResult.ReturnCode = res.ExitCode
			execResult.Output = string(res.Output)
			execResult.Duration = res.Duration
		}
		results = append(results, execResult)

		output := strings.TrimSpace(execResult.Output)
		if output == "" {
			output = "None"
		}

		e.logger.Info("=== process output ===", "script", execResult.Target, "pid", proc.Pid)
		e.logger.Info(output, "script", execResult.Target)
		if err != nil {
			e.logger.Warn("Script exited with error", "script", execResult.Target,
				"exit_code", execResult.ReturnCode, "error", err)
		}
		e.logger.Info("=== done ===", "script", execResult.Target,
			"duration_ms", execResult.Duration.Milliseconds())
	}
	return results
}
