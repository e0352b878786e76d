// Package config provides secure configuration management for the diagramcheck application.
//
// This package handles loading configuration from environment variables, .env files
// and an optional diagramcheck.toml project file, with built-in security measures to
// prevent path traversal attacks. It uses the github.com/caarlos0/env library for
// environment variable parsing, github.com/joho/godotenv for .env file loading and
// github.com/BurntSushi/toml for the project file.
//
// The configuration loading follows a priority order:
//  1. Environment variables (highest priority)
//  2. .env file in current working directory
//  3. Default values (if any)
//
// The project file only carries repository-level settings that have no environment
// equivalent (exclusion globs and extra PlantUML include paths). Values from
// DIAGRAMS_EXCLUDE are appended to the project file's exclusions.
//
// Example usage:
//
//	import "github.com/toozej/diagramcheck/pkg/config"
//
//	func main() {
//		conf := config.GetEnvVars()
//		fmt.Printf("Diagram root: %s\n", conf.Diagrams.Root)
//	}
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// ProjectFileName is the optional per-repository settings file read from the working directory.
const ProjectFileName = "diagramcheck.toml"

// Config represents the main application configuration with nested component configurations.
type Config struct {
	Diagrams DiagramsConfig `envPrefix:"DIAGRAMS_"`
	Cache    CacheConfig    `envPrefix:"CACHE_"`
	PlantUML PlantUMLConfig `envPrefix:"PLANTUML_"`
	Mermaid  MermaidConfig  `envPrefix:"MERMAID_"`
	Render   RenderConfig   `envPrefix:"RENDER_"`
}

// DiagramsConfig represents where diagram sources are discovered.
type DiagramsConfig struct {
	// Root is the directory walked recursively for diagram sources.
	Root string `env:"ROOT" envDefault:"diagrams"`

	// BaseDir is the directory check identifiers are made relative to.
	BaseDir string `env:"BASE_DIR" envDefault:"."`

	// Exclude holds glob patterns, relative to Root, of paths to skip.
	Exclude []string `env:"EXCLUDE" envSeparator:","`
}

// CacheConfig represents the local download cache for renderer dependencies.
type CacheConfig struct {
	// Dir is the cache root. Relative paths resolve against the working directory.
	Dir string `env:"DIR" envDefault:".cache"`

	// HTTPTimeout is the timeout for dependency downloads in seconds.
	HTTPTimeout int `env:"HTTP_TIMEOUT" envDefault:"300"`
}

// PlantUMLConfig represents the PlantUML (stdin piped) renderer.
type PlantUMLConfig struct {
	// JarURL is the download location of the runnable PlantUML jar.
	JarURL string `env:"JAR_URL" envDefault:"https://github.com/plantuml/plantuml/releases/latest/download/plantuml.jar"`

	// JarSHA256 optionally pins the jar's SHA-256 digest (hex).
	JarSHA256 string `env:"JAR_SHA256"`

	// StdlibURL is the download location of the PlantUML stdlib zip archive.
	StdlibURL string `env:"STDLIB_URL" envDefault:"https://github.com/plantuml/plantuml-stdlib/archive/refs/heads/master.zip"`

	// JavaBin is the Java runtime used to run the jar.
	JavaBin string `env:"JAVA_BIN" envDefault:"java"`

	// OutputFormat is passed to PlantUML as -t<format>.
	OutputFormat string `env:"OUTPUT_FORMAT" envDefault:"svg"`

	// IncludePaths are extra include directories, appended after the stdlib.
	IncludePaths []string `env:"INCLUDE_PATHS" envSeparator:","`
}

// MermaidConfig represents the mermaid-cli (file argument) renderer.
type MermaidConfig struct {
	// NpxBin is the package runner used to launch mermaid-cli.
	NpxBin string `env:"NPX_BIN" envDefault:"npx"`

	// Package is the pinned mermaid-cli package, name@version.
	Package string `env:"PACKAGE" envDefault:"@mermaid-js/mermaid-cli@10.9.0"`

	// PuppeteerConfig is the JSON file controlling browser sandbox flags.
	PuppeteerConfig string `env:"PUPPETEER_CONFIG" envDefault:"puppeteer-config.json"`
}

// RenderConfig represents limits applied to every renderer invocation.
type RenderConfig struct {
	// Timeout is the per-invocation timeout in seconds.
	Timeout int `env:"TIMEOUT" envDefault:"300"`
}

// projectFile mirrors diagramcheck.toml.
type projectFile struct {
	Exclude  []string `toml:"exclude"`
	PlantUML struct {
		IncludePaths []string `toml:"include_paths"`
	} `toml:"plantuml"`
}

// GetEnvVars loads and returns the application configuration from environment
// variables, .env files and the optional project file.
//
// The function will terminate the program with os.Exit(1) if any critical
// errors occur during configuration loading, such as:
//   - Current directory access failures
//   - Path traversal attempts detected
//   - .env or project file parsing errors
//   - Environment variable parsing failures
//   - Configuration validation errors
//
// Example:
//
//	conf := config.GetEnvVars()
//	fmt.Printf("Cache dir: %s\n", conf.Cache.Dir)
func GetEnvVars() Config {
	conf, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", err)
		fmt.Fprintln(os.Stderr, "Please check your configuration and try again.")
		os.Exit(1)
	}
	return conf
}

// Load is the error-returning form of GetEnvVars.
func Load() (Config, error) {
	// Get current working directory for secure file operations
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("error getting current working directory: %w", err)
	}

	envPath, err := securePath(cwd, ".env")
	if err != nil {
		return Config{}, err
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return Config{}, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	// Parse environment variables into config struct
	var conf Config
	if err := env.Parse(&conf); err != nil {
		return Config{}, fmt.Errorf("error parsing configuration from environment: %w", err)
	}

	projectPath, err := securePath(cwd, ProjectFileName)
	if err != nil {
		return Config{}, err
	}
	if err := applyProjectFile(&conf, projectPath); err != nil {
		return Config{}, err
	}

	if err := validateConfig(&conf); err != nil {
		return Config{}, err
	}

	return conf, nil
}

// securePath joins name onto dir and rejects results that escape dir.
func securePath(dir, name string) (string, error) {
	joined := filepath.Join(dir, name)

	cleanPath, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("error resolving %s path: %w", name, err)
	}
	cleanDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("error resolving current directory: %w", err)
	}
	relPath, err := filepath.Rel(cleanDir, cleanPath)
	if err != nil || strings.Contains(relPath, "..") {
		return "", ErrPathTraversal
	}
	return cleanPath, nil
}

// applyProjectFile merges diagramcheck.toml into conf when the file exists.
func applyProjectFile(conf *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	var pf projectFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return fmt.Errorf("error parsing %s: %w", ProjectFileName, err)
	}

	conf.Diagrams.Exclude = append(pf.Exclude, conf.Diagrams.Exclude...)
	conf.PlantUML.IncludePaths = append(conf.PlantUML.IncludePaths, pf.PlantUML.IncludePaths...)
	return nil
}

// RenderTimeout returns the per-invocation timeout.
func (r RenderConfig) RenderTimeout() time.Duration {
	if r.Timeout <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.Timeout) * time.Second
}

// Timeout returns the download timeout.
func (c CacheConfig) Timeout() time.Duration {
	if c.HTTPTimeout <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.HTTPTimeout) * time.Second
}

// AbsDir returns the cache root as an absolute path, handling tilde expansion.
func (c CacheConfig) AbsDir() (string, error) {
	return resolvePath(c.Dir)
}

// AbsPuppeteerConfig returns the puppeteer config as an absolute path. Mermaid runs
// with the diagram's directory as working directory, so relative paths would break.
func (m MermaidConfig) AbsPuppeteerConfig() (string, error) {
	return resolvePath(m.PuppeteerConfig)
}

// resolvePath expands a leading ~/ and converts p to an absolute path.
func resolvePath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		p = filepath.Join(homeDir, p[2:])
	}

	absPath, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return absPath, nil
}

// validateConfig validates the configuration
func validateConfig(conf *Config) error {
	var errors []string

	if conf.Diagrams.Root == "" {
		errors = append(errors, ErrMissingDiagramRoot.Error())
	}
	if conf.Cache.Dir == "" {
		errors = append(errors, ErrMissingCacheDir.Error())
	}
	if conf.Cache.HTTPTimeout <= 0 {
		errors = append(errors, "cache HTTP timeout must be greater than 0")
	}
	if conf.PlantUML.JarURL == "" || conf.PlantUML.StdlibURL == "" {
		errors = append(errors, ErrMissingPlantUMLURL.Error())
	}
	if conf.PlantUML.JarSHA256 != "" && len(conf.PlantUML.JarSHA256) != 64 {
		errors = append(errors, "PlantUML jar SHA-256 must be 64 hex characters")
	}
	if conf.PlantUML.OutputFormat == "" {
		errors = append(errors, "PlantUML output format is required")
	}
	if conf.Mermaid.Package == "" {
		errors = append(errors, ErrMissingMermaidPackage.Error())
	}
	if conf.Render.Timeout <= 0 {
		errors = append(errors, "render timeout must be greater than 0")
	}

	// The puppeteer config is read by the renderer, not by us; warn but don't fail
	if conf.Mermaid.PuppeteerConfig != "" {
		if _, err := os.Stat(conf.Mermaid.PuppeteerConfig); err != nil {
			log.Warnf("MERMAID_PUPPETEER_CONFIG %q not found. Mermaid checks may fail.", conf.Mermaid.PuppeteerConfig)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
