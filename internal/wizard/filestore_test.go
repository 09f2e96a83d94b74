package wizard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileDraftStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileDraftStore(filepath.Join(t.TempDir(), "nested", "draft.json"))

	if _, ok, err := store.Load(ctx); ok || err != nil {
		t.Fatalf("Load() on empty store = %v, %v", ok, err)
	}

	d := NewDraft()
	d.Name = "Bracket Test"
	d.GeometryPath = "/tmp/bracket.step"
	if err := store.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("draft file mode = %v, want 0600", info.Mode().Perm())
	}

	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	if got != d {
		t.Errorf("Load() = %+v, want %+v", got, d)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Error("draft should be gone after Clear")
	}
}

func TestFileDraftStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFileDraftStore(path).Load(context.Background()); err == nil {
		t.Error("Load() should fail on a corrupt file")
	}
}
