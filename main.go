// Package main provides the entry point for the diagramcheck application.
//
// diagramcheck verifies that PlantUML and Mermaid diagram sources render with
// their real toolchains.
package main

import cmd "github.com/toozej/diagramcheck/cmd/diagramcheck"

// main is the entry point of the diagramcheck application.
// It delegates execution to the cmd package which handles all
// command-line interface functionality.
func main() {
	cmd.Execute()
}
