package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/suqaba/suqaba-cli/internal/constants"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported geometry file type")
	ErrFileTooLarge         = errors.New("geometry file too large")
	ErrNotRegularFile       = errors.New("geometry path is not a regular file")
)

// IsAllowedGeometryExtension reports whether name ends in one of the accepted
// geometry extensions, ignoring case.
func IsAllowedGeometryExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range constants.AllowedGeometryExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ValidateGeometryFile checks that path names an existing regular file with an
// accepted extension and a size of at most maxBytes (0 = no limit).
// It returns the file size on success.
func ValidateGeometryFile(path string, maxBytes int64) (int64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, fmt.Errorf("geometry path cannot be empty")
	}

	if !IsAllowedGeometryExtension(path) {
		return 0, fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedExtension,
			filepath.Ext(path), strings.Join(constants.AllowedGeometryExtensions, ", "))
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("cannot access geometry file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}

	if maxBytes > 0 && info.Size() > maxBytes {
		return 0, fmt.Errorf("%w: %s exceeds the %s limit", ErrFileTooLarge,
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(maxBytes)))
	}

	return info.Size(), nil
}
