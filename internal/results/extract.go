package results

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/suqaba/suqaba-cli/internal/diskspace"
	"github.com/suqaba/suqaba-cli/internal/validation"
)

// Extract unpacks the zip archive at src into dest and returns the number of
// files written. Entries that would land outside dest are rejected before
// anything is written; symlinks are skipped.
func Extract(src, dest string) (int, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open results archive: %w", err)
	}
	defer zr.Close()

	var total uint64
	for _, f := range zr.File {
		if err := validation.ValidatePathInDirectory(f.Name, dest); err != nil {
			return 0, fmt.Errorf("refusing to extract %s: %w", src, err)
		}
		total += f.UncompressedSize64
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	if err := diskspace.Check(dest, int64(total), diskspace.DefaultMargin); err != nil {
		return 0, err
	}

	count := 0
	for _, f := range zr.File {
		target := filepath.Join(dest, f.Name)
		mode := f.Mode()

		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, fmt.Errorf("failed to create %s: %w", f.Name, err)
			}
		case mode&os.ModeSymlink != 0:
			continue
		default:
			if err := extractFile(f, target); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s from archive: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
