// Package discovery finds diagram source files under a directory tree.
//
// Results are sorted lexicographically by path so check order and check
// identifiers are stable between runs.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/toozej/diagramcheck/internal/types"
)

// Options controls a discovery walk.
type Options struct {
	// Exclude holds path.Match patterns tested against slash-separated paths
	// relative to the root. A matching directory prunes its whole subtree.
	Exclude []string
}

// Set holds discovered diagrams, one sorted slice per format.
type Set struct {
	Root     string
	PlantUML []types.Diagram
	Mermaid  []types.Diagram
}

// ByFormat returns the diagrams of a single format.
func (s *Set) ByFormat(f types.Format) []types.Diagram {
	switch f {
	case types.FormatPlantUML:
		return s.PlantUML
	case types.FormatMermaid:
		return s.Mermaid
	default:
		return nil
	}
}

// Count returns the number of diagrams of a format.
func (s *Set) Count(f types.Format) int {
	return len(s.ByFormat(f))
}

// All returns PlantUML diagrams followed by Mermaid diagrams.
func (s *Set) All() []types.Diagram {
	all := make([]types.Diagram, 0, len(s.PlantUML)+len(s.Mermaid))
	all = append(all, s.PlantUML...)
	return append(all, s.Mermaid...)
}

// Discover walks root recursively and collects every *.puml and *.mmd file.
// Finding nothing is not an error; a missing root is.
func Discover(root string, opts Options) (*Set, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve diagram root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagram root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("diagram root %s is not a directory", absRoot)
	}

	for _, pattern := range opts.Exclude {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}

	set := &Set{Root: absRoot}
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == absRoot {
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return err
		}
		if excluded(filepath.ToSlash(rel), opts.Exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		format, ok := types.FormatForPath(p)
		if !ok {
			return nil
		}
		diagram := types.Diagram{Path: p, Format: format}
		switch format {
		case types.FormatPlantUML:
			set.PlantUML = append(set.PlantUML, diagram)
		case types.FormatMermaid:
			set.Mermaid = append(set.Mermaid, diagram)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk diagram root: %w", err)
	}

	sortDiagrams(set.PlantUML)
	sortDiagrams(set.Mermaid)
	return set, nil
}

// sortDiagrams orders diagrams by path component, so a directory's contents
// stay together ("a/b.puml" before "a-b.puml").
func sortDiagrams(diagrams []types.Diagram) {
	slices.SortFunc(diagrams, func(a, b types.Diagram) int {
		return slices.Compare(pathComponents(a.Path), pathComponents(b.Path))
	})
}

func pathComponents(p string) []string {
	return strings.Split(filepath.ToSlash(p), "/")
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		// a bare directory name excludes it at any depth
		if !strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, path.Base(rel)); ok {
				return true
			}
		}
	}
	return false
}

// diagramSource adapts a diagram list to fuzzy.Source, matching on relative paths.
type diagramSource struct {
	root     string
	diagrams []types.Diagram
}

func (s diagramSource) String(i int) string {
	rel, err := filepath.Rel(s.root, s.diagrams[i].Path)
	if err != nil {
		return s.diagrams[i].Path
	}
	return filepath.ToSlash(rel)
}

func (s diagramSource) Len() int { return len(s.diagrams) }

// Filter returns the diagrams whose path relative to root fuzzy-matches query.
// Discovery order is preserved. An empty query returns the input unchanged.
func Filter(root string, diagrams []types.Diagram, query string) []types.Diagram {
	query = strings.TrimSpace(query)
	if query == "" {
		return diagrams
	}

	matches := fuzzy.FindFrom(query, diagramSource{root: root, diagrams: diagrams})
	indexes := make([]int, 0, len(matches))
	for _, m := range matches {
		indexes = append(indexes, m.Index)
	}
	sort.Ints(indexes)

	filtered := make([]types.Diagram, 0, len(indexes))
	for _, i := range indexes {
		filtered = append(filtered, diagrams[i])
	}
	return filtered
}
