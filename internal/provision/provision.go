// Package provision downloads and caches renderer dependencies.
//
// A Provisioner owns a cache root directory. Each Resource is fetched at most
// once per process: the first Ensure call does the work (or finds it already on
// disk) and every later call for the same URL gets the memoized path or error.
// Nothing expires; a present, non-empty target is never downloaded again.
//
// Provisioning is safe for concurrent use inside one process but takes no
// filesystem locks, so two processes sharing a cache root may race.
package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Kind distinguishes plain files from archives that must be unpacked.
type Kind int

const (
	// KindFile is stored as downloaded.
	KindFile Kind = iota
	// KindArchive is a zip archive unpacked into a directory.
	KindArchive
)

// Resource describes one remote dependency and where it lives in the cache.
type Resource struct {
	// Name is used in logs and diagnostics.
	Name string
	// URL identifies the resource and is the memoization key.
	URL  string
	Kind Kind
	// Target is the file or directory name under the cache root.
	Target string
	// DirPrefix names the archive's top-level directory, e.g. "plantuml-stdlib-"
	// for a GitHub branch archive that unpacks to "plantuml-stdlib-master".
	DirPrefix string
	// Subdir must exist inside Target after extraction; Ensure returns its path.
	Subdir string
	// SHA256 optionally pins a KindFile download.
	SHA256 string
}

type memoEntry struct {
	once sync.Once
	path string
	err  error
}

// Provisioner ensures resources exist under a cache root.
type Provisioner struct {
	root    string
	fetcher Fetcher
	logger  *log.Entry

	mu   sync.Mutex
	memo map[string]*memoEntry
}

// New creates a provisioner rooted at root.
func New(root string, fetcher Fetcher) *Provisioner {
	return &Provisioner{
		root:    root,
		fetcher: fetcher,
		logger:  log.WithField("component", "provisioner"),
		memo:    make(map[string]*memoEntry),
	}
}

// Root returns the cache root directory.
func (p *Provisioner) Root() string {
	return p.root
}

// Ensure returns the local path of r, downloading it on first use.
func (p *Provisioner) Ensure(ctx context.Context, r Resource) (string, error) {
	p.mu.Lock()
	entry, ok := p.memo[r.URL]
	if !ok {
		entry = &memoEntry{}
		p.memo[r.URL] = entry
	}
	p.mu.Unlock()

	entry.once.Do(func() {
		entry.path, entry.err = p.provision(ctx, r)
	})
	return entry.path, entry.err
}

// Clear removes everything under the cache root and forgets memoized results.
// It returns the number of top-level entries removed.
func (p *Provisioner) Clear() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memo = make(map[string]*memoEntry)

	entries, err := os.ReadDir(p.root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache root: %w", err)
	}

	count := 0
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(p.root, e.Name())); err != nil {
			return count, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		count++
	}
	return count, nil
}

func (p *Provisioner) provision(ctx context.Context, r Resource) (string, error) {
	if err := os.MkdirAll(p.root, 0750); err != nil {
		return "", fmt.Errorf("failed to create cache root: %w", err)
	}

	logger := p.logger.WithFields(log.Fields{
		"resource": r.Name,
		"url":      r.URL,
	})

	switch r.Kind {
	case KindFile:
		return p.ensureFile(ctx, r, logger)
	case KindArchive:
		return p.ensureArchive(ctx, r, logger)
	default:
		return "", fmt.Errorf("unknown resource kind %d for %s", r.Kind, r.Name)
	}
}

func (p *Provisioner) ensureFile(ctx context.Context, r Resource, logger *log.Entry) (string, error) {
	target := filepath.Join(p.root, r.Target)
	if nonEmptyFile(target) {
		logger.WithField("path", target).Debug("Using cached dependency")
		return target, nil
	}

	logger.Info("Downloading dependency")
	data, err := p.fetcher.Fetch(ctx, r.URL)
	if err != nil {
		return "", err
	}

	if r.SHA256 != "" {
		sum := sha256.Sum256(data)
		actual := hex.EncodeToString(sum[:])
		if !strings.EqualFold(actual, r.SHA256) {
			return "", &ChecksumError{Resource: r.Name, Expected: r.SHA256, Actual: actual}
		}
	}

	// write next to the target and rename so a partial download is never mistaken for a cached one
	tmp, err := os.CreateTemp(p.root, "."+r.Target+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", r.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", r.Name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("failed to move %s into cache: %w", r.Name, err)
	}

	logger.WithField("path", target).Info("Cached dependency")
	return target, nil
}

func (p *Provisioner) ensureArchive(ctx context.Context, r Resource, logger *log.Entry) (string, error) {
	targetDir := filepath.Join(p.root, r.Target)
	result := filepath.Join(targetDir, r.Subdir)
	if nonEmptyDir(result) {
		logger.WithField("path", result).Debug("Using cached dependency")
		return result, nil
	}

	logger.Info("Downloading dependency archive")
	data, err := p.fetcher.Fetch(ctx, r.URL)
	if err != nil {
		return "", err
	}

	staging, err := os.MkdirTemp(p.root, ".extract-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := extractZip(data, staging); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", r.Name, err)
	}

	extracted, found, err := findPrefixedDir(staging, r.DirPrefix)
	if err != nil {
		return "", err
	}
	if extracted == "" {
		return "", &LayoutError{
			Resource: r.Name,
			Expected: fmt.Sprintf("a top-level directory named %s*", r.DirPrefix),
			Found:    found,
		}
	}

	if err := os.RemoveAll(targetDir); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", targetDir, err)
	}
	if err := os.Rename(extracted, targetDir); err != nil {
		return "", fmt.Errorf("failed to move %s into cache: %w", r.Name, err)
	}

	if !nonEmptyDir(result) {
		entries, _ := os.ReadDir(targetDir)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return "", &LayoutError{
			Resource: r.Name,
			Expected: fmt.Sprintf("a %q directory inside %s", r.Subdir, filepath.Base(extracted)),
			Found:    names,
		}
	}

	logger.WithField("path", result).Info("Cached dependency")
	return result, nil
}

func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func nonEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}
