package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/suqaba/suqaba-cli/internal/constants"
)

// getConfigDir returns the platform-appropriate config directory.
// - Windows: %APPDATA%\Suqaba
// - Unix: ~/.config/suqaba (XDG standard, honours XDG_CONFIG_HOME)
func getConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Suqaba")
		}
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, "AppData", "Roaming", "Suqaba")
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, constants.ConfigDirName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", constants.ConfigDirName)
	}
	return ""
}

// GetDefaultConfigPath returns the default INI config path.
func GetDefaultConfigPath() string {
	dir := getConfigDir()
	if dir == "" {
		return constants.ConfigFileName
	}
	return filepath.Join(dir, constants.ConfigFileName)
}

// GetDefaultTokenPath returns the default location of the persisted access token.
func GetDefaultTokenPath() string {
	dir := getConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, constants.TokenFileName)
}

// GetDefaultDraftPath returns the default location of the saved wizard draft.
func GetDefaultDraftPath() string {
	dir := getConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, constants.DraftFileName)
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir := getConfigDir()
	if dir == "" {
		return fmt.Errorf("could not determine config directory")
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
