// Package check binds discovered diagrams to renderers and runs one independent
// check per diagram.
package check

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/toozej/diagramcheck/internal/discovery"
	"github.com/toozej/diagramcheck/internal/process"
	"github.com/toozej/diagramcheck/internal/provision"
	"github.com/toozej/diagramcheck/internal/render"
	"github.com/toozej/diagramcheck/internal/types"
	"github.com/toozej/diagramcheck/pkg/config"
)

// Check is one diagram bound to a stable identifier.
type Check struct {
	ID      string
	Diagram types.Diagram
}

// RunOptions controls a run.
type RunOptions struct {
	// FailFast stops the run after the first failing check.
	FailFast bool
	// OnOutcome, if set, is called after each check completes.
	OnOutcome func(types.Outcome)
}

// Suite runs checks against a set of renderers.
type Suite struct {
	session   *Session
	renderers map[types.Format]types.Renderer
	baseDir   string
	logger    *log.Entry
}

// NewSuite creates a suite. Check IDs are made relative to baseDir.
func NewSuite(session *Session, baseDir string, renderers ...types.Renderer) *Suite {
	s := &Suite{
		session:   session,
		renderers: make(map[types.Format]types.Renderer, len(renderers)),
		baseDir:   baseDir,
		logger:    log.WithField("component", "suite"),
	}
	for _, r := range renderers {
		s.renderers[r.Format()] = r
	}
	return s
}

// NewFromConfig wires the provisioner, session and both renderers from conf.
func NewFromConfig(conf config.Config, executor process.Executor) (*Suite, error) {
	cacheDir, err := conf.Cache.AbsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	puppeteer := ""
	if conf.Mermaid.PuppeteerConfig != "" {
		puppeteer, err = conf.Mermaid.AbsPuppeteerConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve puppeteer config: %w", err)
		}
	}

	prov := provision.New(cacheDir, provision.NewHTTPFetcher(conf.Cache.Timeout()))
	session := NewSession(prov,
		provision.PlantUMLJar(conf.PlantUML.JarURL, conf.PlantUML.JarSHA256),
		provision.PlantUMLStdlib(conf.PlantUML.StdlibURL),
	)

	timeout := conf.Render.RenderTimeout()
	plantuml := render.NewPlantUML(session, executor, render.PlantUMLOptions{
		JavaBin:      conf.PlantUML.JavaBin,
		OutputFormat: conf.PlantUML.OutputFormat,
		IncludePaths: conf.PlantUML.IncludePaths,
		Timeout:      timeout,
	})
	mermaid := render.NewMermaid(executor, render.MermaidOptions{
		NpxBin:          conf.Mermaid.NpxBin,
		Package:         conf.Mermaid.Package,
		PuppeteerConfig: puppeteer,
		Timeout:         timeout,
	})

	return NewSuite(session, conf.Diagrams.BaseDir, plantuml, mermaid), nil
}

// Session returns the suite's shared session.
func (s *Suite) Session() *Session {
	return s.session
}

// Checks produces one check per discovered diagram, PlantUML first.
func (s *Suite) Checks(set *discovery.Set) []Check {
	all := set.All()
	checks := make([]Check, 0, len(all))
	for _, d := range all {
		checks = append(checks, Check{ID: s.checkID(d.Path), Diagram: d})
	}
	return checks
}

// checkID returns path relative to the base directory, falling back to the
// path itself when it lies elsewhere.
func (s *Suite) checkID(path string) string {
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Run executes checks sequentially and returns the report.
func (s *Suite) Run(ctx context.Context, checks []Check, opts RunOptions) *Report {
	report := NewReport()

	if s.session != nil && needsPlantUML(checks) {
		// provisioning happens once, before any check runs; failures surface per check
		_ = s.session.Prepare(ctx)
	}

	for _, c := range checks {
		if ctx.Err() != nil {
			s.logger.WithError(ctx.Err()).Warn("Run cancelled")
			break
		}

		outcome := s.RunCheck(ctx, c)
		report.Add(outcome)
		if opts.OnOutcome != nil {
			opts.OnOutcome(outcome)
		}

		if !outcome.Passed() && opts.FailFast {
			s.logger.WithField("id", c.ID).Info("Stopping after first failure")
			break
		}
	}

	report.Finish()
	return report
}

// RunCheck renders one diagram and classifies the result.
func (s *Suite) RunCheck(ctx context.Context, c Check) types.Outcome {
	outcome := types.Outcome{ID: c.ID, Diagram: c.Diagram, Status: types.StatusPass}
	logger := s.logger.WithFields(log.Fields{
		"id":     c.ID,
		"format": c.Diagram.Format,
	})

	renderer, ok := s.renderers[c.Diagram.Format]
	if !ok {
		outcome.Status = types.StatusFail
		outcome.Kind = types.FailureLaunch
		outcome.Message = fmt.Sprintf("no renderer configured for format %q", c.Diagram.Format)
		return outcome
	}

	start := time.Now()
	err := renderer.Render(ctx, c.Diagram)
	outcome.Duration = time.Since(start)

	if err == nil {
		logger.WithField("duration_ms", outcome.Duration.Milliseconds()).Debug("Check passed")
		return outcome
	}

	outcome.Status = types.StatusFail
	outcome.Kind = render.KindOf(err)
	outcome.Message = err.Error()
	outcome.Command = render.CommandOf(err)

	var renderErr *render.RenderError
	var timeoutErr *render.TimeoutError
	switch {
	case errors.As(err, &renderErr):
		outcome.ExitCode = renderErr.ExitCode
		outcome.Stdout = renderErr.Stdout
		outcome.Stderr = renderErr.Stderr
	case errors.As(err, &timeoutErr):
		outcome.ExitCode = -1
		outcome.Stdout = timeoutErr.Stdout
		outcome.Stderr = timeoutErr.Stderr
	}

	logger.WithField("kind", outcome.Kind).Warn("Check failed")
	return outcome
}

func needsPlantUML(checks []Check) bool {
	for _, c := range checks {
		if c.Diagram.Format == types.FormatPlantUML {
			return true
		}
	}
	return false
}
