package results

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/suqaba/suqaba-cli/internal/api"
	"github.com/suqaba/suqaba-cli/internal/diskspace"
	"github.com/suqaba/suqaba-cli/internal/jobs"
	"github.com/suqaba/suqaba-cli/internal/models"
)

type fakeDownloader struct {
	body     []byte
	filename string
	size     int64 // overrides len(body) as the advertised length
	err      error
	calls    int
}

func (f *fakeDownloader) DownloadResults(ctx context.Context, cred api.Credential, id string) (*api.ResultDownload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	size := f.size
	if size == 0 {
		size = int64(len(f.body))
	}
	return &api.ResultDownload{
		Body:          io.NopCloser(bytes.NewReader(f.body)),
		Filename:      f.filename,
		ContentLength: size,
	}, nil
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func completedJob(id string) *jobs.Machine {
	return jobs.NewMachine(models.Simulation{ID: id, Status: models.StatusCompleted})
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		suggested, id, want string
	}{
		{"bracket_results.zip", "sim_1", "bracket_results.zip"},
		{"", "sim_1", "results_sim_1.zip"},
		{"../../etc/passwd", "sim_1", "results_sim_1.zip"},
		{"..", "sim_1", "results_sim_1.zip"},
		{"", "a/b", "results.zip"},
	}
	for _, tt := range tests {
		if got := ArchiveName(tt.suggested, tt.id); got != tt.want {
			t.Errorf("ArchiveName(%q, %q) = %q, want %q", tt.suggested, tt.id, got, tt.want)
		}
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()

	first, err := UniquePath(dir, "results.zip")
	if err != nil || first != filepath.Join(dir, "results.zip") {
		t.Fatalf("UniquePath() = %q, %v", first, err)
	}
	if err := os.WriteFile(first, nil, 0644); err != nil {
		t.Fatal(err)
	}

	second, _ := UniquePath(dir, "results.zip")
	if second != filepath.Join(dir, "results_1.zip") {
		t.Errorf("second = %q", second)
	}
	if err := os.WriteFile(second, nil, 0644); err != nil {
		t.Fatal(err)
	}

	third, _ := UniquePath(dir, "results.zip")
	if third != filepath.Join(dir, "results_2.zip") {
		t.Errorf("third = %q", third)
	}
}

func TestDownloadRequiresCompletedJob(t *testing.T) {
	fake := &fakeDownloader{}
	m := jobs.NewMachine(models.Simulation{ID: "sim_1", Status: models.StatusProcessing})

	_, err := Download(context.Background(), fake, api.Token("t"), m, Options{Dir: t.TempDir()})
	if !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Errorf("Download() error = %v, want ErrInvalidTransition", err)
	}
	if fake.calls != 0 {
		t.Error("no request should be made for a job without results")
	}
}

func TestDownloadAndExtract(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"report.txt":     "quality oracle: 92",
		"mesh/nodes.csv": "1,0,0,0",
	})
	fake := &fakeDownloader{body: archive, filename: "sim_123_results.zip"}
	dir := t.TempDir()
	out := filepath.Join(dir, "unpacked")

	res, err := Download(context.Background(), fake, api.Token("t"), completedJob("sim_123"), Options{Dir: dir, ExtractDir: out})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if res.Path != filepath.Join(dir, "sim_123_results.zip") || res.Bytes != int64(len(archive)) {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Extracted != 2 {
		t.Errorf("Extracted = %d, want 2", res.Extracted)
	}
	data, err := os.ReadFile(filepath.Join(out, "mesh", "nodes.csv"))
	if err != nil || string(data) != "1,0,0,0" {
		t.Errorf("extracted file = %q, %v", data, err)
	}

	// Same name again gets a suffix instead of overwriting
	fake.body = archive
	res2, err := Download(context.Background(), fake, api.Token("t"), completedJob("sim_123"), Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if res2.Path != filepath.Join(dir, "sim_123_results_1.zip") {
		t.Errorf("second download path = %q", res2.Path)
	}
}

func TestDownloadErrorLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeDownloader{err: &api.ServerError{Op: "download results", StatusCode: 404, Message: "Results not found"}}

	if _, err := Download(context.Background(), fake, api.Token("t"), completedJob("sim_1"), Options{Dir: dir}); !api.IsNotFound(err) {
		t.Errorf("Download() error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty directory, found %d entries", len(entries))
	}
}

func TestDownloadChecksDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if diskspace.Available(dir) == 0 {
		t.Skip("could not determine available space")
	}
	fake := &fakeDownloader{body: []byte("x"), size: 1 << 62}

	_, err := Download(context.Background(), fake, api.Token("t"), completedJob("sim_1"), Options{Dir: dir})
	if !diskspace.IsInsufficientSpaceError(err) {
		t.Fatalf("Download() error = %v, want InsufficientSpaceError", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("nothing should be written, found %d entries", len(entries))
	}
}

func TestExtractRejectsZipSlip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	if err := os.WriteFile(src, buildZip(t, map[string]string{"../escape.txt": "x"}), 0644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "out")

	if _, err := Extract(src, dest); err == nil {
		t.Fatal("Extract() should reject entries outside the destination")
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("escaping entry must not be written")
	}
}
