// Package render drives the external diagram renderers.
//
// Two invocation protocols are supported:
//
//   - PlantUML reads the diagram from standard input (java -jar plantuml.jar -pipe).
//   - Mermaid reads the diagram from a file argument and writes an SVG next to it
//     (npx @mermaid-js/mermaid-cli -i in.mmd -o in.svg); the SVG is always deleted.
//
// Both run with the diagram's directory as working directory so relative includes
// resolve, and both classify the result the same way: launch failure, non-zero
// exit, timeout, or success. The renderer's exit status is trusted; rendered
// output is never inspected.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/toozej/diagramcheck/internal/process"
	"github.com/toozej/diagramcheck/internal/types"
)

// readDiagram loads the diagram source and insists on UTF-8.
func readDiagram(d types.Diagram) ([]byte, error) {
	//nolint:gosec // G304: diagram paths come from discovery
	content, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagram %s: %w", d.Path, err)
	}
	if !utf8.Valid(content) {
		return nil, &DecodeError{Diagram: d, Err: errors.New("invalid UTF-8 byte sequence")}
	}
	return content, nil
}

// run executes cmd and maps the result onto the harness error taxonomy.
func run(ctx context.Context, exec process.Executor, tool string, d types.Diagram, cmd process.Command, logger *log.Entry) error {
	logger = logger.WithFields(log.Fields{
		"diagram": d.Path,
		"command": cmd.String(),
	})
	logger.Debug("Rendering diagram")

	result, err := exec.Run(ctx, cmd)

	var launchErr *process.LaunchError
	switch {
	case errors.As(err, &launchErr):
		logger.WithError(err).Error("Renderer could not be launched")
		return &LaunchError{Tool: tool, Command: cmd.String(), Err: launchErr.Err}
	case errors.Is(err, process.ErrTimeout):
		logger.WithError(err).Error("Renderer timed out")
		te := &TimeoutError{Diagram: d, Tool: tool, Command: cmd.String(), Err: err}
		if result != nil {
			te.Stdout, te.Stderr = result.Stdout, result.Stderr
		}
		return te
	case errors.Is(err, process.ErrCanceled):
		logger.WithError(err).Warn("Renderer interrupted")
		return &CanceledError{Diagram: d, Tool: tool, Command: cmd.String(), Err: err}
	case err != nil:
		return fmt.Errorf("%s invocation failed: %w", tool, err)
	}

	if result.ExitCode != 0 {
		logger.WithField("exit_code", result.ExitCode).Warn("Renderer reported failure")
		return &RenderError{
			Diagram:  d,
			Tool:     tool,
			Command:  cmd.String(),
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
		}
	}

	logger.WithField("duration_ms", result.Duration.Milliseconds()).Debug("Diagram rendered")
	return nil
}

// CommandOf returns the command line recorded in a harness error, if any.
func CommandOf(err error) string {
	var (
		re *RenderError
		le *LaunchError
		te *TimeoutError
		ce *CanceledError
	)
	switch {
	case errors.As(err, &re):
		return re.Command
	case errors.As(err, &le):
		return le.Command
	case errors.As(err, &te):
		return te.Command
	case errors.As(err, &ce):
		return ce.Command
	default:
		return ""
	}
}
