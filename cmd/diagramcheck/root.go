// Package cmd provides command-line interface functionality for the diagramcheck application.
//
// This package implements the root command and manages the command-line interface
// using the cobra library. It handles configuration, logging setup, and command
// execution for the diagramcheck application.
//
// The package integrates with several components:
//   - Configuration management through pkg/config
//   - Diagram discovery and rendering through internal/discovery and internal/check
//   - Renderer dependency caching through internal/provision
//   - Manual pages through pkg/man
//   - Version information through pkg/version
//
// Example usage:
//
//	import cmd "github.com/toozej/diagramcheck/cmd/diagramcheck"
//
//	func main() {
//		cmd.Execute()
//	}
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toozej/diagramcheck/internal/process"
	"github.com/toozej/diagramcheck/pkg/config"
	"github.com/toozej/diagramcheck/pkg/man"
	"github.com/toozej/diagramcheck/pkg/version"
)

// conf holds the application configuration loaded from environment variables.
// It is populated before every command runs and can be modified by command-line flags.
var (
	conf config.Config
	// debug controls the logging level for the application.
	// When true, debug-level logging is enabled through logrus.
	debug bool
)

// newExecutor builds the process executor used for renderer invocations.
// Tests replace it with a fake.
var newExecutor = func() process.Executor {
	return process.NewExecExecutor()
}

// rootCmd defines the base command for the diagramcheck CLI application.
// It serves as the entry point for all command-line operations and establishes
// the application's structure, flags, and subcommands.
var rootCmd = &cobra.Command{
	Use:   "diagramcheck",
	Short: "Verify that PlantUML and Mermaid diagrams render",
	Long: `diagramcheck discovers PlantUML (*.puml) and Mermaid (*.mmd) diagram sources,
renders each one with the real toolchain (java + plantuml.jar, npx + mermaid-cli)
and reports every diagram whose renderer cannot be launched or exits non-zero.

The PlantUML jar and stdlib are downloaded once into a local cache and reused.`,
	Args:             cobra.ExactArgs(0),
	SilenceErrors:    true,
	PersistentPreRun: rootCmdPreRun,
	Run:              rootCmdRun,
}

// rootCmdRun is the main execution function for the root command.
func rootCmdRun(cmd *cobra.Command, args []string) {
	log.Info("Use 'diagramcheck check' to render every diagram")
	log.Info("Use 'diagramcheck list [query]' to list discovered diagrams")
}

// rootCmdPreRun performs setup operations before executing the root command.
// This function is called before both the root command and any subcommands.
//
// It loads configuration and configures the logging level based on the debug flag.
func rootCmdPreRun(cmd *cobra.Command, args []string) {
	conf = config.GetEnvVars()
	if debug {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute starts the command-line interface execution.
// This is the main entry point called from main.go to begin command processing.
//
// If command execution fails, it prints the error message to stderr and
// exits the program with status code 1. Stdout carries only command output,
// so --output json|yaml stays parseable on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printExecuteError(os.Stderr, err)
		os.Exit(1)
	}
}

// printExecuteError reports err unless it only signals failed checks, which the
// check command has already reported.
func printExecuteError(w io.Writer, err error) {
	if errors.Is(err, errChecksFailed) {
		return
	}
	fmt.Fprintln(w, "Error:", err.Error())
}

func init() {
	// create rootCmd-level flags
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug-level logging")

	// add sub-commands
	rootCmd.AddCommand(
		newCheckCmd(),
		newListCmd(),
		newCacheCmd(),
		man.NewManCmd(),
		version.Command(),
	)
}
