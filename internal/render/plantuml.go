package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/toozej/diagramcheck/internal/process"
	"github.com/toozej/diagramcheck/internal/types"
)

// PlantUMLAssets are the provisioned files the PlantUML renderer needs.
type PlantUMLAssets struct {
	Jar    string
	Stdlib string
}

// AssetResolver supplies PlantUML assets, provisioning them on first use.
type AssetResolver interface {
	PlantUMLAssets(ctx context.Context) (PlantUMLAssets, error)
}

// PlantUMLOptions configures the PlantUML renderer.
type PlantUMLOptions struct {
	JavaBin      string
	OutputFormat string
	// IncludePaths are searched after the stdlib.
	IncludePaths []string
	Timeout      time.Duration
}

// PlantUML renders diagrams by piping them into the PlantUML jar.
type PlantUML struct {
	assets   AssetResolver
	executor process.Executor
	opts     PlantUMLOptions
	logger   *log.Entry
}

// NewPlantUML creates a PlantUML renderer.
func NewPlantUML(assets AssetResolver, executor process.Executor, opts PlantUMLOptions) *PlantUML {
	if opts.JavaBin == "" {
		opts.JavaBin = "java"
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = "svg"
	}
	return &PlantUML{
		assets:   assets,
		executor: executor,
		opts:     opts,
		logger:   log.WithField("component", "plantuml_renderer"),
	}
}

// Format implements types.Renderer.
func (p *PlantUML) Format() types.Format {
	return types.FormatPlantUML
}

// Render implements types.Renderer.
func (p *PlantUML) Render(ctx context.Context, d types.Diagram) error {
	assets, err := p.assets.PlantUMLAssets(ctx)
	if err != nil {
		return &AcquisitionError{Dependency: "PlantUML", Err: err}
	}

	content, err := readDiagram(d)
	if err != nil {
		return err
	}

	cmd := process.Command{
		Name:    p.opts.JavaBin,
		Args:    p.Args(assets),
		Dir:     d.Dir(),
		Stdin:   content,
		Timeout: p.opts.Timeout,
	}
	return run(ctx, p.executor, "PlantUML", d, cmd, p.logger)
}

// Args builds the java argument list for the given assets.
func (p *PlantUML) Args(assets PlantUMLAssets) []string {
	includes := append([]string{assets.Stdlib}, p.includePaths()...)
	return []string{
		"-Djava.awt.headless=true",
		"-Dplantuml.include.path=" + strings.Join(includes, string(os.PathListSeparator)),
		"-jar",
		assets.Jar,
		"-t" + p.opts.OutputFormat,
		"-pipe",
	}
}

// includePaths makes the extra include paths absolute, since the renderer runs
// from the diagram's own directory.
func (p *PlantUML) includePaths() []string {
	paths := make([]string, 0, len(p.opts.IncludePaths))
	for _, ip := range p.opts.IncludePaths {
		if ip == "" {
			continue
		}
		if abs, err := filepath.Abs(ip); err == nil {
			ip = abs
		}
		paths = append(paths, ip)
	}
	return paths
}
