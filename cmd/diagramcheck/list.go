package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toozej/diagramcheck/internal/types"
)

// newListCmd creates the list command for showing discovered diagrams.
func newListCmd() *cobra.Command {
	var root, format string

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List discovered diagrams",
		Long: `List the diagram sources that 'diagramcheck check' would render.
An optional query narrows the list using fuzzy matching on the path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = strings.TrimSpace(args[0])
			}
			return runList(cmd.OutOrStdout(), root, format, query)
		},
	}

	cmd.Flags().StringVarP(&root, "root", "r", "", "Diagram root directory (overrides DIAGRAMS_ROOT)")
	cmd.Flags().StringVarP(&format, "format", "f", "all", "Diagram format to list: plantuml, mermaid or all")

	return cmd
}

// runList prints every matching diagram relative to the diagram root.
func runList(w io.Writer, root, format, query string) error {
	set, err := discoverDiagrams(root, format, query)
	if err != nil {
		return err
	}

	all := set.All()
	if len(all) == 0 {
		log.WithField("query", query).Warn("No matching diagrams found")
		return nil
	}

	fmt.Fprintf(w, "%s\n", styleTitle.Render(fmt.Sprintf("%d diagram(s) under %s", len(all), set.Root)))
	for _, d := range all {
		rel, err := filepath.Rel(set.Root, d.Path)
		if err != nil {
			rel = d.Path
		}
		printDiagram(w, filepath.ToSlash(rel), d.Format)
	}

	for _, f := range types.Formats {
		log.WithFields(log.Fields{"format": f, "count": set.Count(f)}).Debug("Listed diagrams")
	}
	return nil
}
