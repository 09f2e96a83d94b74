package constants

import (
	"time"
)

// API defaults
const (
	// DefaultAPIBaseURL is used when neither config, env nor flag provide one.
	DefaultAPIBaseURL = "https://app.suqaba.com/api"

	// DefaultListLimit is the number of recent simulations fetched for the dashboard.
	DefaultListLimit = 10

	// MaxListLimit caps --limit so a typo can't ask the server for everything.
	MaxListLimit = 500
)

// Session
const (
	// TokenFileName is the fixed storage key for the persisted access token.
	TokenFileName = "token"

	// DraftFileName holds the wizard draft saved with "submit --save-draft".
	DraftFileName = "draft.json"

	// ConfigFileName is the INI config file inside the config directory.
	ConfigFileName = "config.ini"

	// ConfigDirName is the directory under the user config root.
	ConfigDirName = "suqaba"
)

// Polling
const (
	// DefaultPollInterval is how often a watched job is re-fetched.
	DefaultPollInterval = 10 * time.Second

	// MinPollInterval keeps the watcher from hammering the server.
	MinPollInterval = 2 * time.Second

	// MaxPollInterval is the slowest allowed poll (1 hour).
	MaxPollInterval = time.Hour
)

// Upload limits
const (
	// DefaultMaxUploadBytes matches the server's MAX_FILE_SIZE (100 MB).
	DefaultMaxUploadBytes = 100 * 1024 * 1024
)

// AllowedGeometryExtensions are the only file types the wizard accepts.
// Matching is case-insensitive.
var AllowedGeometryExtensions = []string{".step", ".stp", ".iges", ".igs", ".inp", ".dat"}

// Error threshold bounds (percent)
const (
	DefaultErrorThreshold = 20.0
	MaxErrorThreshold     = 100.0
)

// Client-side request pacing
const (
	// DefaultRequestsPerSecond is the token refill rate for outgoing API calls.
	DefaultRequestsPerSecond = 10.0

	// DefaultRequestBurst lets short bursts (dashboard load, submit + refresh) through unthrottled.
	DefaultRequestBurst = 20.0
)

// HTTP Client Timeouts
const (
	// HTTPDialTimeout - timeout for establishing TCP connections (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive probe interval for TCP connections (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - how long idle connections stay in the pool (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPClientTimeout - overall request timeout; large uploads/downloads rely on ctx instead
	HTTPClientTimeout = 300 * time.Second
)

// Retry configuration for server-directed retries (429/503 with Retry-After)
const (
	RetryMax     = 3
	RetryWaitMin = 1 * time.Second
	RetryWaitMax = 30 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 100

	// EventBusMaxBuffer - maximum buffer size
	EventBusMaxBuffer = 1000
)
