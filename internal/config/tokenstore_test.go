package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/suqaba/suqaba-cli/internal/logging"
)

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "token")
	store := NewFileTokenStore(path, logging.NewNop())

	if _, err := store.Load(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken before save, got %v", err)
	}

	if err := store.Save("  abc.def.ghi \n"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected 0600 permissions, got %04o", info.Mode().Perm())
		}
	}

	token, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Errorf("expected trimmed token, got %q", token)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken after clear, got %v", err)
	}
	// Clearing twice is fine
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}

func TestFileTokenStoreEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}
	store := NewFileTokenStore(path, logging.NewNop())
	if _, err := store.Load(); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken for empty file, got %v", err)
	}
}

func TestFileTokenStoreSaveTightensExistingFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}

	store := NewFileTokenStore(path, logging.NewNop())
	if err := store.Save("new-token"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 after overwrite, got %04o", info.Mode().Perm())
	}
	if token, err := store.Load(); err != nil || token != "new-token" {
		t.Errorf("Load() = %q, %v", token, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestFileTokenStoreWarnsOnInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("abc\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	store := NewFileTokenStore(path, logging.NewLogger(logging.Options{Console: &buf}))
	token, err := store.Load()
	if err != nil || token != "abc" {
		t.Fatalf("Load() = %q, %v", token, err)
	}
	if !strings.Contains(buf.String(), "insecure permissions") || !strings.Contains(buf.String(), "0644") {
		t.Errorf("expected a permissions warning in the log, got %q", buf.String())
	}

	buf.Reset()
	if err := os.Chmod(path, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output for 0600 file: %q", buf.String())
	}
}

func TestWriteTokenFileRejectsEmpty(t *testing.T) {
	if err := WriteTokenFile(filepath.Join(t.TempDir(), "token"), "   "); err == nil {
		t.Error("expected error writing empty token")
	}
}

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore("")
	if _, err := store.Load(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if err := store.Save("tok"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := store.Load(); tok != "tok" {
		t.Errorf("expected tok, got %q", tok)
	}
	_ = store.Clear()
	if _, err := store.Load(); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken after clear, got %v", err)
	}
}
