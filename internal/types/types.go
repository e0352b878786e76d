package types

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Renderer defines the interface for rendering a single diagram through an external toolchain
type Renderer interface {
	Format() Format
	Render(ctx context.Context, diagram Diagram) error
}

// Core data models

// Format identifies a diagram notation
type Format string

const (
	// FormatPlantUML is rendered through the PlantUML jar on a Java runtime
	FormatPlantUML Format = "plantuml"
	// FormatMermaid is rendered through mermaid-cli launched by npx
	FormatMermaid Format = "mermaid"
)

// Formats lists every supported format in reporting order.
var Formats = []Format{FormatPlantUML, FormatMermaid}

// Extension returns the source file extension for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatPlantUML:
		return ".puml"
	case FormatMermaid:
		return ".mmd"
	default:
		return ""
	}
}

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "plantuml", "puml":
		return FormatPlantUML, nil
	case "mermaid", "mmd":
		return FormatMermaid, nil
	default:
		return "", fmt.Errorf("unknown diagram format %q", name)
	}
}

// FormatForPath infers the format of a diagram from its extension.
func FormatForPath(path string) (Format, bool) {
	ext := filepath.Ext(path)
	for _, f := range Formats {
		if f.Extension() == ext {
			return f, true
		}
	}
	return "", false
}

// Diagram represents a discovered diagram source file
type Diagram struct {
	Path   string `json:"path" yaml:"path"`
	Format Format `json:"format" yaml:"format"`
}

// Dir returns the directory containing the diagram.
func (d Diagram) Dir() string {
	return filepath.Dir(d.Path)
}

// String returns a string representation of the diagram
func (d Diagram) String() string {
	return fmt.Sprintf("%s (%s)", d.Path, d.Format)
}

// FailureKind classifies why a check failed
type FailureKind string

const (
	// FailureNone marks a passing check
	FailureNone FailureKind = ""
	// FailureAcquisition means a renderer dependency could not be provisioned
	FailureAcquisition FailureKind = "acquisition"
	// FailureDecode means the diagram is not valid UTF-8 text
	FailureDecode FailureKind = "decode"
	// FailureLaunch means the renderer executable could not be started
	FailureLaunch FailureKind = "launch"
	// FailureRender means the renderer ran and exited non-zero
	FailureRender FailureKind = "render"
	// FailureTimeout means the renderer exceeded the configured timeout
	FailureTimeout FailureKind = "timeout"
	// FailureCanceled means the run was interrupted while the renderer was running
	FailureCanceled FailureKind = "canceled"
)

// Status is the binary result of a check
type Status string

const (
	// StatusPass marks a diagram that rendered successfully
	StatusPass Status = "pass"
	// StatusFail marks a diagram that did not render
	StatusFail Status = "fail"
)

// Outcome represents the classified result of checking one diagram
type Outcome struct {
	ID       string        `json:"id" yaml:"id"`
	Diagram  Diagram       `json:"diagram" yaml:"diagram"`
	Status   Status        `json:"status" yaml:"status"`
	Kind     FailureKind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`
	Command  string        `json:"command,omitempty" yaml:"command,omitempty"`
	ExitCode int           `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Stdout   string        `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Passed reports whether the check succeeded
func (o *Outcome) Passed() bool {
	return o.Status == StatusPass
}

// Summary holds pass/fail counts for a run
type Summary struct {
	Total    int                 `json:"total" yaml:"total"`
	Passed   int                 `json:"passed" yaml:"passed"`
	Failed   int                 `json:"failed" yaml:"failed"`
	ByFormat map[Format]int      `json:"by_format" yaml:"by_format"`
	ByKind   map[FailureKind]int `json:"by_kind,omitempty" yaml:"by_kind,omitempty"`
}

// Add records an outcome in the summary
func (s *Summary) Add(o Outcome) {
	if s.ByFormat == nil {
		s.ByFormat = make(map[Format]int)
	}
	s.Total++
	s.ByFormat[o.Diagram.Format]++
	if o.Passed() {
		s.Passed++
		return
	}
	s.Failed++
	if s.ByKind == nil {
		s.ByKind = make(map[FailureKind]int)
	}
	s.ByKind[o.Kind]++
}
