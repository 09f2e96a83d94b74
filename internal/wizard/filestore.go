package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileDraftStore keeps one draft as JSON in a file readable only by the owner.
type FileDraftStore struct {
	path string
}

// NewFileDraftStore returns a store backed by path.
func NewFileDraftStore(path string) *FileDraftStore {
	return &FileDraftStore{path: path}
}

// Path returns the backing file.
func (s *FileDraftStore) Path() string {
	return s.path
}

func (s *FileDraftStore) Save(ctx context.Context, d Draft) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create draft directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write draft: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (s *FileDraftStore) Load(ctx context.Context) (Draft, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, fmt.Errorf("failed to read draft: %w", err)
	}

	d := NewDraft()
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, false, fmt.Errorf("draft file %s is corrupt: %w", s.path, err)
	}
	return d, true, nil
}

func (s *FileDraftStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove draft: %w", err)
	}
	return nil
}
