// Package config provides configuration management for the Suqaba client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/suqaba/suqaba-cli/internal/constants"
)

// Config is the client configuration.
//
// Config file location:
//   - Windows: %APPDATA%\Suqaba\config.ini
//   - Unix: ~/.config/suqaba/config.ini
//
// INI format:
//
//	[suqaba]
//	api_url = https://app.suqaba.com/api
//	token_file = ~/.config/suqaba/token
//
//	[client]
//	poll_interval_seconds = 10
//	list_limit = 10
//	max_upload_mb = 100
//	min_error_threshold = 0
//	requests_per_second = 10
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//	warmup = false
//
//	[logging]
//	log_file =
type Config struct {
	// API settings
	APIBaseURL string
	TokenFile  string

	// Client behaviour
	PollInterval      time.Duration
	ListLimit         int
	MaxUploadBytes    int64
	MinErrorThreshold float64 // 0 disables the floor
	RequestsPerSecond float64

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never written to disk
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// Logging
	LogFile string
}

// Validation errors
var (
	ErrMissingAPIURL        = errors.New("api_url is required")
	ErrInvalidPollInterval  = errors.New("poll_interval_seconds must be between 2 and 3600")
	ErrInvalidListLimit     = errors.New("list_limit must be between 1 and 500")
	ErrInvalidMaxUpload     = errors.New("max_upload_mb must be positive")
	ErrInvalidMinThreshold  = errors.New("min_error_threshold must be between 0 and 100")
	ErrInvalidRequestRate   = errors.New("requests_per_second must be positive")
	ErrUnsupportedProxyMode = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost     = errors.New("proxy host is required for basic and ntlm modes")
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		APIBaseURL:        constants.DefaultAPIBaseURL,
		TokenFile:         GetDefaultTokenPath(),
		PollInterval:      constants.DefaultPollInterval,
		ListLimit:         constants.DefaultListLimit,
		MaxUploadBytes:    constants.DefaultMaxUploadBytes,
		RequestsPerSecond: constants.DefaultRequestsPerSecond,
		ProxyMode:         "no-proxy",
	}
}

// Load reads configuration from an INI file.
// If path is empty the default location is used. A missing file yields defaults and no error;
// a file that exists but cannot be parsed is an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	main := iniFile.Section("suqaba")
	cfg.APIBaseURL = main.Key("api_url").MustString(cfg.APIBaseURL)
	if tf := strings.TrimSpace(main.Key("token_file").String()); tf != "" {
		cfg.TokenFile = ExpandHome(tf)
	}

	client := iniFile.Section("client")
	cfg.PollInterval = time.Duration(client.Key("poll_interval_seconds").MustInt(int(constants.DefaultPollInterval/time.Second))) * time.Second
	cfg.ListLimit = client.Key("list_limit").MustInt(cfg.ListLimit)
	cfg.MaxUploadBytes = client.Key("max_upload_mb").MustInt64(constants.DefaultMaxUploadBytes/(1024*1024)) * 1024 * 1024
	cfg.MinErrorThreshold = client.Key("min_error_threshold").MustFloat64(0)
	cfg.RequestsPerSecond = client.Key("requests_per_second").MustFloat64(cfg.RequestsPerSecond)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	cfg.LogFile = ExpandHome(iniFile.Section("logging").Key("log_file").String())

	return cfg, nil
}

// Save writes cfg to an INI file, creating parent directories as needed.
// The proxy password is deliberately not persisted.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = GetDefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	main, err := iniFile.NewSection("suqaba")
	if err != nil {
		return fmt.Errorf("failed to create suqaba section: %w", err)
	}
	main.Key("api_url").SetValue(cfg.APIBaseURL)
	main.Key("token_file").SetValue(cfg.TokenFile)

	client, err := iniFile.NewSection("client")
	if err != nil {
		return fmt.Errorf("failed to create client section: %w", err)
	}
	client.Key("poll_interval_seconds").SetValue(fmt.Sprintf("%d", int(cfg.PollInterval/time.Second)))
	client.Key("list_limit").SetValue(fmt.Sprintf("%d", cfg.ListLimit))
	client.Key("max_upload_mb").SetValue(fmt.Sprintf("%d", cfg.MaxUploadBytes/(1024*1024)))
	client.Key("min_error_threshold").SetValue(fmt.Sprintf("%g", cfg.MinErrorThreshold))
	client.Key("requests_per_second").SetValue(fmt.Sprintf("%g", cfg.RequestsPerSecond))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(fmt.Sprintf("%d", cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(fmt.Sprintf("%t", cfg.ProxyWarmup))

	logging, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logging.Key("log_file").SetValue(cfg.LogFile)

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ApplyEnv overrides file values with SUQABA_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("SUQABA_API_URL")); v != "" {
		c.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SUQABA_TOKEN_FILE")); v != "" {
		c.TokenFile = ExpandHome(v)
	}
	if v := os.Getenv("SUQABA_PROXY_PASSWORD"); v != "" {
		c.ProxyPassword = v
	}
}

// MergeWithFlags applies command-line overrides. Empty values leave the config untouched.
func (c *Config) MergeWithFlags(apiURL, tokenFile, proxyMode, logFile string) {
	if apiURL != "" {
		c.APIBaseURL = apiURL
	}
	if tokenFile != "" {
		c.TokenFile = ExpandHome(tokenFile)
	}
	if proxyMode != "" {
		c.ProxyMode = proxyMode
	}
	if logFile != "" {
		c.LogFile = ExpandHome(logFile)
	}
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrMissingAPIURL
	}
	if c.PollInterval < constants.MinPollInterval || c.PollInterval > constants.MaxPollInterval {
		return ErrInvalidPollInterval
	}
	if c.ListLimit < 1 || c.ListLimit > constants.MaxListLimit {
		return ErrInvalidListLimit
	}
	if c.MaxUploadBytes <= 0 {
		return ErrInvalidMaxUpload
	}
	if c.MinErrorThreshold < 0 || c.MinErrorThreshold > constants.MaxErrorThreshold {
		return ErrInvalidMinThreshold
	}
	if c.RequestsPerSecond <= 0 {
		return ErrInvalidRequestRate
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if c.ProxyHost == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrUnsupportedProxyMode
	}

	return nil
}
