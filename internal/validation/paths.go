// Package validation checks user-supplied files and server-supplied names before
// they touch the filesystem.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilename validates a bare filename received from an untrusted source
// (for example a Content-Disposition header) before it is joined to a directory.
//
// Returns an error if the filename is empty, is "." or "..", or contains a path
// separator or a null byte.
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}

	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}

	// Separators are already rejected, so "foo..bar.zip" is fine here
	if filename == ".." || filename == "." {
		return fmt.Errorf("filename cannot be %q", filename)
	}

	return nil
}

// ValidatePathInDirectory validates that path, resolved relative to baseDir,
// stays within baseDir. Used for archive entries during result extraction.
//
//	ValidatePathInDirectory("../../etc/passwd", "/tmp/out") // error
//	ValidatePathInDirectory("mesh/nodes.csv", "/tmp/out")   // ok
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if baseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	base, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, resolved)
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s (base: %s)", path, baseDir)
	}

	return nil
}
