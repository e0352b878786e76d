package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/toozej/diagramcheck/internal/types"
)

// KindError is implemented by every harness failure so callers can classify it.
type KindError interface {
	error
	Kind() types.FailureKind
}

// AcquisitionError means a renderer dependency could not be provisioned.
type AcquisitionError struct {
	Dependency string
	Err        error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("renderer dependency %s unavailable: %v", e.Dependency, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Kind implements KindError.
func (e *AcquisitionError) Kind() types.FailureKind { return types.FailureAcquisition }

// DecodeError means the diagram source is not valid UTF-8 text.
type DecodeError struct {
	Diagram types.Diagram
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to read diagram %s: %v\nEnsure the file is UTF-8 encoded.", e.Diagram.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Kind implements KindError.
func (e *DecodeError) Kind() types.FailureKind { return types.FailureDecode }

// LaunchError means the renderer executable could not be started.
type LaunchError struct {
	Tool    string
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("unable to execute %s.\nCommand: %s\nError: %v", e.Tool, e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Kind implements KindError.
func (e *LaunchError) Kind() types.FailureKind { return types.FailureLaunch }

// RenderError means the renderer ran and exited non-zero.
type RenderError struct {
	Diagram  types.Diagram
	Tool     string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *RenderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rendering failed for %s\n", e.Tool, e.Diagram.Path)
	fmt.Fprintf(&b, "Command: %s\n", e.Command)
	fmt.Fprintf(&b, "Exit code: %d\n", e.ExitCode)
	fmt.Fprintf(&b, "Stdout:\n%s\n", e.Stdout)
	fmt.Fprintf(&b, "Stderr:\n%s", e.Stderr)
	return b.String()
}

// Kind implements KindError.
func (e *RenderError) Kind() types.FailureKind { return types.FailureRender }

// TimeoutError means the renderer did not finish within the configured timeout.
type TimeoutError struct {
	Diagram types.Diagram
	Tool    string
	Command string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s rendering timed out for %s\nCommand: %s\nError: %v\nStdout:\n%s\nStderr:\n%s",
		e.Tool, e.Diagram.Path, e.Command, e.Err, e.Stdout, e.Stderr)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Kind implements KindError.
func (e *TimeoutError) Kind() types.FailureKind { return types.FailureTimeout }

// CanceledError means the run was interrupted while the renderer was running.
type CanceledError struct {
	Diagram types.Diagram
	Tool    string
	Command string
	Err     error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("%s rendering interrupted for %s\nCommand: %s\nError: %v", e.Tool, e.Diagram.Path, e.Command, e.Err)
}

func (e *CanceledError) Unwrap() error { return e.Err }

// Kind implements KindError.
func (e *CanceledError) Kind() types.FailureKind { return types.FailureCanceled }

// KindOf classifies err. Unclassified errors count as render failures.
func KindOf(err error) types.FailureKind {
	if err == nil {
		return types.FailureNone
	}
	var ke KindError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return types.FailureRender
}
