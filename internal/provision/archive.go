package provision

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// maxEntrySize limits a single extracted file (1GB max to prevent decompression bombs).
// Larger entries fail the extraction.
var maxEntrySize int64 = 1 << 30

// extractZip unpacks an in-memory zip archive into destDir.
func extractZip(data []byte, destDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	cleanDest := filepath.Clean(destDir)

	for _, f := range zr.File {
		//nolint:gosec // G305: Path traversal validated by prefix check below
		target := filepath.Join(destDir, f.Name)

		// Ensure target is within destDir (security check)
		if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("invalid file path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractZipFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
	}
	//nolint:errcheck // Defer close on read-only entry
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	//nolint:gosec // G304: target validated by extractZip
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(out, io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if n > maxEntrySize {
		_ = out.Close()
		return fmt.Errorf("entry %s exceeds %d bytes", f.Name, maxEntrySize)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// findPrefixedDir returns the single top-level directory in dir whose name starts
// with prefix, together with every top-level name seen (for diagnostics).
func findPrefixedDir(dir, prefix string) (string, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read extracted directory: %w", err)
	}

	var found []string
	var match string
	for _, e := range entries {
		found = append(found, e.Name())
		if match == "" && e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			match = filepath.Join(dir, e.Name())
		}
	}
	return match, found, nil
}
