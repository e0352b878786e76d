// Package version provides build information for the diagramcheck application.
//
// The package-level variables are overridden at build time with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/toozej/diagramcheck/pkg/version.Version=v1.2.3"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information. Populated at build time.
var (
	Version = "dev"
	Commit  = "none"
	BuiltAt = "unknown"
	BuiltBy = "unknown"
)

// Info represents the version details reported by the version command.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuiltAt   string `json:"built_at"`
	BuiltBy   string `json:"built_by"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuiltAt:   BuiltAt,
		BuiltBy:   BuiltBy,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// Command creates the version command.
func Command() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of diagramcheck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := Get()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err := fmt.Fprintf(out, "diagramcheck %s (commit %s, built %s by %s, %s %s)\n",
				info.Version, info.Commit, info.BuiltAt, info.BuiltBy, info.GoVersion, info.Platform)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version information as JSON")

	return cmd
}
