package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toozej/diagramcheck/internal/check"
	"github.com/toozej/diagramcheck/internal/discovery"
	"github.com/toozej/diagramcheck/internal/types"
)

// errChecksFailed is returned when at least one diagram did not render.
var errChecksFailed = errors.New("one or more diagrams failed to render")

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type checkOptions struct {
	root     string
	format   string
	match    string
	failFast bool
	output   string
}

// newCheckCmd creates the check command that renders every discovered diagram.
func newCheckCmd() *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Render every diagram and report failures",
		Long: `Discover diagram sources under the diagram root and render each one.
PlantUML diagrams are piped into java -jar plantuml.jar; Mermaid diagrams are
rendered with npx @mermaid-js/mermaid-cli and the output is discarded.

Exits non-zero if any diagram fails to render.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runCheck(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.root, "root", "r", "", "Diagram root directory (overrides DIAGRAMS_ROOT)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "all", "Diagram format to check: plantuml, mermaid or all")
	cmd.Flags().StringVarP(&opts.match, "match", "m", "", "Only check diagrams whose path fuzzy-matches this query")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "Stop after the first failing diagram")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputText, "Output format: text, json or yaml")

	return cmd
}

// runCheck discovers, renders and reports.
func runCheck(ctx context.Context, w io.Writer, opts *checkOptions) error {
	if err := validateOutput(opts.output); err != nil {
		return err
	}

	set, err := discoverDiagrams(opts.root, opts.format, opts.match)
	if err != nil {
		return err
	}

	suite, err := check.NewFromConfig(conf, newExecutor())
	if err != nil {
		return fmt.Errorf("failed to initialize renderers: %w", err)
	}

	checks := suite.Checks(set)
	log.WithFields(log.Fields{
		"root":     set.Root,
		"plantuml": set.Count(types.FormatPlantUML),
		"mermaid":  set.Count(types.FormatMermaid),
	}).Info("Discovered diagrams")

	if len(checks) == 0 {
		log.Warn("No diagrams found")
	}

	runOpts := check.RunOptions{FailFast: opts.failFast}
	if opts.output == outputText {
		runOpts.OnOutcome = func(o types.Outcome) { printOutcome(w, o) }
	}

	report := suite.Run(ctx, checks, runOpts)

	if err := writeReport(w, report, opts.output); err != nil {
		return err
	}
	if !report.Passed() {
		return errChecksFailed
	}
	return nil
}

// discoverDiagrams walks the diagram root and narrows the result by format and query.
func discoverDiagrams(root, format, match string) (*discovery.Set, error) {
	if root == "" {
		root = conf.Diagrams.Root
	}

	set, err := discovery.Discover(root, discovery.Options{Exclude: conf.Diagrams.Exclude})
	if err != nil {
		return nil, err
	}

	switch format {
	case "", "all":
	default:
		f, err := types.ParseFormat(format)
		if err != nil {
			return nil, err
		}
		if f != types.FormatPlantUML {
			set.PlantUML = nil
		}
		if f != types.FormatMermaid {
			set.Mermaid = nil
		}
	}

	set.PlantUML = discovery.Filter(set.Root, set.PlantUML, match)
	set.Mermaid = discovery.Filter(set.Root, set.Mermaid, match)
	return set, nil
}

func validateOutput(output string) error {
	switch output {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (expected text, json or yaml)", output)
	}
}

func writeReport(w io.Writer, report *check.Report, output string) error {
	switch output {
	case outputJSON:
		return report.WriteJSON(w)
	case outputYAML:
		return report.WriteYAML(w)
	default:
		printSummary(w, report)
		return nil
	}
}
