package check

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/toozej/diagramcheck/internal/types"
)

// Report collects the outcomes of one run.
type Report struct {
	RunID     string          `json:"run_id" yaml:"run_id"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Duration  time.Duration   `json:"duration" yaml:"duration"`
	Outcomes  []types.Outcome `json:"outcomes" yaml:"outcomes"`
	Summary   types.Summary   `json:"summary" yaml:"summary"`
}

// NewReport starts a report with a fresh run ID.
func NewReport() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Outcomes:  []types.Outcome{},
	}
}

// Add records an outcome.
func (r *Report) Add(o types.Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Summary.Add(o)
}

// Finish stamps the run duration.
func (r *Report) Finish() {
	r.Duration = time.Since(r.StartedAt)
}

// Passed reports whether every recorded check passed.
func (r *Report) Passed() bool {
	return r.Summary.Failed == 0
}

// Failures returns the failing outcomes in run order.
func (r *Report) Failures() []types.Outcome {
	var failed []types.Outcome
	for _, o := range r.Outcomes {
		if !o.Passed() {
			failed = append(failed, o)
		}
	}
	return failed
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}
	return nil
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report as YAML: %w", err)
	}
	return enc.Close()
}
