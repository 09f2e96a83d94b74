package validation

import (
	"path/filepath"
	"testing"
)

// TestValidateFilename covers names taken from Content-Disposition headers.
func TestValidateFilename(t *testing.T) {
	testCases := []struct {
		name        string
		filename    string
		expectValid bool
	}{
		{"simple", "results_sim_123.zip", true},
		{"with dots", "bracket.v1.2.zip", true},
		{"double dot inside", "data..v2.zip", true},
		{"hidden file", ".results", true},
		{"spaces", "bracket test results.zip", true},

		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"unix traversal", "../../etc/passwd", false},
		{"windows traversal", `..\..\windows\system32`, false},
		{"absolute unix", "/etc/passwd", false},
		{"subdir", "out/results.zip", false},
		{"null byte", "results\x00.zip", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilename(tc.filename)
			if tc.expectValid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tc.filename, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("expected %q to be rejected", tc.filename)
			}
		})
	}
}

// TestValidatePathInDirectory covers archive entry paths during extraction.
func TestValidatePathInDirectory(t *testing.T) {
	base := t.TempDir()

	testCases := []struct {
		name        string
		path        string
		expectValid bool
	}{
		{"plain file", "report.txt", true},
		{"nested", filepath.Join("mesh", "nodes.csv"), true},
		{"dot segments that stay inside", filepath.Join("mesh", "..", "report.txt"), true},
		{"escape", filepath.Join("..", "evil.txt"), false},
		{"deep escape", filepath.Join("mesh", "..", "..", "evil.txt"), false},
		{"absolute outside", filepath.Join(filepath.Dir(base), "evil.txt"), false},
		{"absolute inside", filepath.Join(base, "ok.txt"), true},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePathInDirectory(tc.path, base)
			if tc.expectValid && err != nil {
				t.Errorf("expected %q to be inside %s, got %v", tc.path, base, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("expected %q to be rejected", tc.path)
			}
		})
	}

	if err := ValidatePathInDirectory("x", ""); err == nil {
		t.Error("expected error for empty base directory")
	}
}
