// Package config provides error definitions for configuration-related errors.
package config

import "errors"

// Configuration validation errors
var (
	// ErrPathTraversal is returned when a config file path resolves outside the working directory
	ErrPathTraversal = errors.New("config file path traversal detected")

	// ErrMissingDiagramRoot is returned when no diagram root directory is configured
	ErrMissingDiagramRoot = errors.New("diagram root directory is required")

	// ErrMissingCacheDir is returned when no cache directory is configured
	ErrMissingCacheDir = errors.New("cache directory is required")

	// ErrMissingPlantUMLURL is returned when a PlantUML download URL is empty
	ErrMissingPlantUMLURL = errors.New("PlantUML jar and stdlib URLs are required")

	// ErrMissingMermaidPackage is returned when the mermaid-cli package is empty
	ErrMissingMermaidPackage = errors.New("mermaid-cli package is required")
)
