package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/toozej/diagramcheck/internal/check"
	"github.com/toozej/diagramcheck/internal/types"
)

var (
	colorCyan  = lipgloss.Color("36")  // Teal - headings
	colorGreen = lipgloss.Color("35")  // Green - pass
	colorRed   = lipgloss.Color("167") // Soft red - fail
	colorWhite = lipgloss.Color("255") // Bright white - values
	colorGray  = lipgloss.Color("245") // Gray - secondary text
	colorDim   = lipgloss.Color("240") // Dim gray - muted text
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleKind    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleFormat  = lipgloss.NewStyle().Foreground(colorGray)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
)

// failureKinds is the order failure counts are listed in.
var failureKinds = []types.FailureKind{
	types.FailureAcquisition,
	types.FailureDecode,
	types.FailureLaunch,
	types.FailureRender,
	types.FailureTimeout,
	types.FailureCanceled,
}

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconArrow   = "→"
)

// printOutcome prints one check result; failures include the renderer diagnostics.
func printOutcome(w io.Writer, o types.Outcome) {
	if o.Passed() {
		fmt.Fprintf(w, "%s %s %s\n",
			styleSuccess.Render(iconSuccess),
			styleValue.Render(o.ID),
			styleDim.Render(formatDuration(o.Duration)))
		return
	}

	fmt.Fprintf(w, "%s %s %s\n",
		styleError.Render(iconError),
		styleValue.Render(o.ID),
		styleKind.Render(string(o.Kind)))
	for _, line := range strings.Split(strings.TrimRight(o.Message, "\n"), "\n") {
		fmt.Fprintln(w, "    "+styleDim.Render(line))
	}
}

// printSummary prints the closing totals for a run.
func printSummary(w io.Writer, r *check.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, styleTitle.Render("Summary"))

	counts := fmt.Sprintf("%d passed, %d failed, %d total", r.Summary.Passed, r.Summary.Failed, r.Summary.Total)
	if r.Passed() {
		fmt.Fprintln(w, styleSuccess.Render(iconSuccess)+" "+counts)
	} else {
		fmt.Fprintln(w, styleError.Render(iconError)+" "+counts)
	}

	for _, f := range types.Formats {
		if n := r.Summary.ByFormat[f]; n > 0 {
			printKeyValue(w, string(f), fmt.Sprintf("%d", n))
		}
	}
	for _, kind := range failureKinds {
		if n := r.Summary.ByKind[kind]; n > 0 {
			printKeyValue(w, string(kind), fmt.Sprintf("%d failed", n))
		}
	}
	printKeyValue(w, "duration", formatDuration(r.Duration))
	printKeyValue(w, "run", r.RunID)
}

// printDiagram prints a discovered diagram for the list command.
func printDiagram(w io.Writer, id string, f types.Format) {
	fmt.Fprintf(w, "  %s %s %s\n", styleDim.Render(iconArrow), styleValue.Render(id), styleFormat.Render("("+string(f)+")"))
}

func printKeyValue(w io.Writer, key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Fprintln(w, "  "+keyStyle.Render(key)+" "+styleValue.Render(value))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
