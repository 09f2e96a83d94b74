// Package results downloads the result archive of a completed simulation and
// optionally unpacks it.
package results

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/suqaba/suqaba-cli/internal/api"
	"github.com/suqaba/suqaba-cli/internal/diskspace"
	"github.com/suqaba/suqaba-cli/internal/jobs"
	"github.com/suqaba/suqaba-cli/internal/logging"
	"github.com/suqaba/suqaba-cli/internal/progress"
	"github.com/suqaba/suqaba-cli/internal/validation"
)

// maxCollisionSuffix bounds the search for a free file name.
const maxCollisionSuffix = 1000

// Downloader opens result archives.
type Downloader interface {
	DownloadResults(ctx context.Context, cred api.Credential, id string) (*api.ResultDownload, error)
}

// Options controls where results go.
type Options struct {
	// Dir receives the archive; empty means the working directory.
	Dir string
	// ExtractDir, if set, receives the unpacked archive.
	ExtractDir string
	Progress   progress.Reporter
	Logger     *logging.Logger
}

// Result describes a finished download.
type Result struct {
	Path      string
	Bytes     int64
	Extracted int
}

// Download saves the results of the job held by m. Only completed jobs have
// results; anything else fails with jobs.ErrInvalidTransition before any request.
func Download(ctx context.Context, client Downloader, cred api.Credential, m *jobs.Machine, opts Options) (*Result, error) {
	if err := m.Check(jobs.ActionDownload); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.NoOpProgress{}
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	id := m.ID()
	dl, err := client.DownloadResults(ctx, cred, id)
	if err != nil {
		return nil, err
	}
	defer dl.Close()

	if err := diskspace.Check(dir, dl.ContentLength, diskspace.DefaultMargin); err != nil {
		return nil, err
	}

	name := ArchiveName(dl.Filename, id)
	if name != dl.Filename && dl.Filename != "" {
		logger.Warn().Str("filename", dl.Filename).Str("using", name).Msg("server sent an unsafe file name")
	}

	path, err := UniquePath(dir, name)
	if err != nil {
		return nil, err
	}

	n, err := writeAtomically(path, dl.Body, dl.ContentLength, reporter)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("job_id", id).Str("path", path).Int64("bytes", n).Msg("results downloaded")

	res := &Result{Path: path, Bytes: n}
	if opts.ExtractDir != "" {
		count, err := Extract(path, opts.ExtractDir)
		if err != nil {
			return res, err
		}
		res.Extracted = count
	}
	return res, nil
}

// ArchiveName returns the server-suggested name if it is a safe bare file
// name, otherwise results_<id>.zip.
func ArchiveName(suggested, id string) string {
	if suggested != "" && validation.ValidateFilename(suggested) == nil {
		return suggested
	}
	fallback := "results_" + id + ".zip"
	if validation.ValidateFilename(fallback) != nil {
		return "results.zip"
	}
	return fallback
}

// UniquePath returns dir/name, or dir/base_<n>.ext for the first n that does
// not exist yet.
func UniquePath(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return path, nil
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxCollisionSuffix; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

// writeAtomically streams r into a temp file next to path and renames it into
// place, so a failed transfer never leaves a partial archive under path.
func writeAtomically(path string, r io.Reader, size int64, reporter progress.Reporter) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".suqaba-download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	reporter.Start(size, filepath.Base(path))
	n, err := io.Copy(tmp, progress.NewReader(r, reporter))
	if err != nil {
		return n, fmt.Errorf("download interrupted after %d bytes: %w", n, err)
	}
	reporter.Finish()

	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("failed to flush results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("failed to close results file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return n, fmt.Errorf("failed to move results into place: %w", err)
	}
	committed = true
	return n, nil
}
