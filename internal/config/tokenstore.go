package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/suqaba/suqaba-cli/internal/logging"
)

// ErrNoToken is returned by TokenStore.Load when nothing has been persisted.
var ErrNoToken = errors.New("no stored token")

// TokenStore persists the session access token under a single fixed key.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenStore keeps the token in a file readable only by the owner.
type FileTokenStore struct {
	path   string
	logger *logging.Logger
}

// NewFileTokenStore returns a store backed by path.
func NewFileTokenStore(path string, logger *logging.Logger) *FileTokenStore {
	return &FileTokenStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the token. A missing or empty file yields ErrNoToken.
// A file readable by group or others is still used, with a warning.
func (s *FileTokenStore) Load() (string, error) {
	token, err := ReadTokenFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, errEmptyTokenFile) {
			return "", ErrNoToken
		}
		return "", err
	}
	if perm, ok := insecureMode(s.path); ok {
		s.logger.Warn().Str("path", s.path).Str("mode", fmt.Sprintf("%04o", perm)).
			Msgf("token file has insecure permissions, consider 'chmod 600 %s'", s.path)
	}
	return token, nil
}

// Save writes the token with 0600 permissions.
func (s *FileTokenStore) Save(token string) error {
	return WriteTokenFile(s.path, token)
}

// Clear removes the token file. Clearing a missing file is not an error.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	s.logger.Debug().Str("path", s.path).Msg("token cleared")
	return nil
}

var errEmptyTokenFile = errors.New("token file is empty")

// ReadTokenFile reads an access token from a file.
// The file should contain only the token (whitespace is trimmed).
func ReadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errEmptyTokenFile
	}
	return token, nil
}

// insecureMode reports the permissions of path when group or others can
// access it. Windows permissions are not checked.
func insecureMode(path string) (os.FileMode, bool) {
	if runtime.GOOS == "windows" {
		return 0, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	perm := info.Mode().Perm()
	return perm, perm&0077 != 0
}

// WriteTokenFile replaces the token file atomically. The result is always
// mode 0600, also when an existing file had wider permissions.
func WriteTokenFile(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("cannot write empty token")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if _, err := tmp.WriteString(token + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// MemoryTokenStore is an in-process TokenStore, used in tests and with --no-persist.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenStore returns a store optionally seeded with a token.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (s *MemoryTokenStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryTokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("cannot write empty token")
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
