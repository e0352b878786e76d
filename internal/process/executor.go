// Package process runs external commands for the renderer harness.
//
// The Executor interface is deliberately narrow so renderers can be tested with a
// fake implementation, without the real toolchains installed.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrTimeout is returned when a command exceeds its timeout.
var ErrTimeout = errors.New("command timed out")

// ErrCanceled is returned when the caller's context is cancelled while the
// command runs, e.g. on SIGINT.
var ErrCanceled = errors.New("command canceled")

// waitDelay bounds how long Run waits for output pipes after the process is killed.
const waitDelay = 2 * time.Second

// Executor runs a single external command to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Command describes one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Stdin   []byte
	Timeout time.Duration
}

// String renders the command line for diagnostics.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result contains the result of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// LaunchError is returned when the process could not be started at all.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExecExecutor runs commands with os/exec.
type ExecExecutor struct {
	logger *log.Entry
}

// NewExecExecutor creates a new executor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{
		logger: log.WithField("component", "process_executor"),
	}
}

// Run executes cmd and waits for it. A non-zero exit status is reported through
// Result.ExitCode, not as an error. Errors are reserved for launch failures
// (*LaunchError), timeouts (ErrTimeout) and cancellation (ErrCanceled); the last
// two are returned alongside the partial result.
func (e *ExecExecutor) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	//nolint:gosec // G204: renderer commands are built from configuration
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	// renderers spawn children (browsers, JVM helpers) that can hold the pipes open
	c.WaitDelay = waitDelay
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	e.logger.WithFields(log.Fields{
		"command": cmd.String(),
		"dir":     cmd.Dir,
	}).Debug("Running command")

	start := time.Now()
	err := c.Run()
	result := &Result{
		Duration: time.Since(start),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.ExitCode = -1
		return result, fmt.Errorf("%w after %v: %s", ErrTimeout, cmd.Timeout, cmd.String())
	case ctx.Err() != nil:
		result.ExitCode = -1
		return result, fmt.Errorf("%w: %s: %w", ErrCanceled, cmd.String(), ctx.Err())
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	case errors.Is(err, exec.ErrWaitDelay):
		// exited cleanly, an orphaned child kept the output pipes open
		return result, nil
	default:
		return nil, &LaunchError{Command: cmd.String(), Err: err}
	}
}

var _ Executor = (*ExecExecutor)(nil)
