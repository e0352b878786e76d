package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/toozej/diagramcheck/internal/process"
	"github.com/toozej/diagramcheck/internal/types"
)

// MermaidOptions configures the Mermaid renderer.
type MermaidOptions struct {
	NpxBin  string
	Package string
	// PuppeteerConfig must be absolute; the renderer runs from the diagram's directory.
	PuppeteerConfig string
	Timeout         time.Duration
}

// Mermaid renders diagrams with mermaid-cli, passing the source as a file argument.
type Mermaid struct {
	executor process.Executor
	opts     MermaidOptions
	logger   *log.Entry
}

// NewMermaid creates a Mermaid renderer.
func NewMermaid(executor process.Executor, opts MermaidOptions) *Mermaid {
	if opts.NpxBin == "" {
		opts.NpxBin = "npx"
	}
	return &Mermaid{
		executor: executor,
		opts:     opts,
		logger:   log.WithField("component", "mermaid_renderer"),
	}
}

// Format implements types.Renderer.
func (m *Mermaid) Format() types.Format {
	return types.FormatMermaid
}

// Render implements types.Renderer. The SVG written by the renderer is removed
// on every exit path. An SVG that already sits next to the source is left alone:
// the renderer writes to a scratch directory instead.
func (m *Mermaid) Render(ctx context.Context, d types.Diagram) error {
	input, err := filepath.Abs(d.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", d.Path, err)
	}
	output, cleanup, err := m.outputFor(input)
	if err != nil {
		return err
	}
	defer cleanup()

	cmd := process.Command{
		Name:    m.opts.NpxBin,
		Args:    m.Args(input, output),
		Dir:     d.Dir(),
		Timeout: m.opts.Timeout,
	}
	return run(ctx, m.executor, "Mermaid CLI", d, cmd, m.logger)
}

// Args builds the npx argument list.
func (m *Mermaid) Args(input, output string) []string {
	args := []string{"--yes", m.opts.Package, "-i", input, "-o", output}
	if m.opts.PuppeteerConfig != "" {
		args = append(args, "-p", m.opts.PuppeteerConfig)
	}
	return append(args, "--quiet")
}

// outputFor picks where the renderer writes its SVG and returns the matching cleanup.
func (m *Mermaid) outputFor(input string) (string, func(), error) {
	output := OutputPath(input)
	if _, err := os.Lstat(output); os.IsNotExist(err) {
		return output, func() { m.cleanup(output, os.Remove) }, nil
	}

	scratch, err := os.MkdirTemp("", "diagramcheck-mermaid-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch directory for %s: %w", input, err)
	}
	m.logger.WithField("existing", output).Debug("Rendering to scratch directory to keep existing output")
	return filepath.Join(scratch, filepath.Base(output)), func() { m.cleanup(scratch, os.RemoveAll) }, nil
}

func (m *Mermaid) cleanup(path string, remove func(string) error) {
	err := remove(path)
	if err != nil && !os.IsNotExist(err) {
		m.logger.WithError(err).WithField("output", path).Warn("Failed to remove rendered output")
	}
}

// OutputPath swaps the source extension for .svg.
func OutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".svg"
}
