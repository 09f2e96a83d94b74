package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/suqaba/suqaba-cli/internal/config"
	"github.com/suqaba/suqaba-cli/internal/constants"
	"github.com/suqaba/suqaba-cli/internal/http"
	"github.com/suqaba/suqaba-cli/internal/logging"
	"github.com/suqaba/suqaba-cli/internal/ratelimit"
	"github.com/suqaba/suqaba-cli/internal/version"
)

// Credential supplies the bearer token for a protected call.
// *session.Session implements it; a nil or empty credential means "not logged in".
type Credential interface {
	BearerToken() string
}

// Token is a bare Credential, for callers that hold a token but no session.
type Token string

func (t Token) BearerToken() string { return string(t) }

// Client represents the Suqaba API client
type Client struct {
	httpClient     *nethttp.Client // JSON calls, server-directed retries
	downloadClient *nethttp.Client // result archives, no overall timeout
	baseURL        string
	limiter        *ratelimit.RateLimiter
	logger         *logging.Logger
	totalCalls     atomic.Int64

	hookMu         sync.RWMutex
	onUnauthorized func(Credential)
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRateLimiter replaces the default request pacer.
func WithRateLimiter(rl *ratelimit.RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}

// WithHTTPClient replaces both underlying HTTP clients.
func WithHTTPClient(hc *nethttp.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.downloadClient = hc
	}
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("API base URL is empty: set api_url in the config file or SUQABA_API_URL")
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.APIBaseURL, "/"),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		apiClient, err := http.NewAPIClient(cfg, c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
		}
		downloadClient, err := http.NewDownloadClient(cfg, c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure download client: %w", err)
		}
		c.httpClient = apiClient
		c.downloadClient = downloadClient
	}

	if c.limiter == nil {
		rate := cfg.RequestsPerSecond
		if rate <= 0 {
			rate = constants.DefaultRequestsPerSecond
		}
		c.limiter = ratelimit.NewRateLimiter(rate, constants.DefaultRequestBurst, c.logger)
	}

	return c, nil
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TotalCalls returns how many requests this client has sent.
func (c *Client) TotalCalls() int64 {
	return c.totalCalls.Load()
}

// SetUnauthorizedHook registers fn to be called with the credential of any
// protected request that came back 401.
func (c *Client) SetUnauthorizedHook(fn func(Credential)) {
	c.hookMu.Lock()
	c.onUnauthorized = fn
	c.hookMu.Unlock()
}

// request describes one API call.
type request struct {
	op          string
	method      string
	path        string
	cred        Credential // nil for public endpoints
	protected   bool
	body        []byte
	contentType string
	download    bool
}

// doRequest performs an HTTP request with authentication and rate limiting.
// Transport failures become *NetworkError; the caller owns resp.Body.
func (c *Client) doRequest(ctx context.Context, r request) (*nethttp.Response, error) {
	token := ""
	if r.cred != nil {
		token = r.cred.BearerToken()
	}
	if r.protected && token == "" {
		return nil, ErrUnauthenticated
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	c.totalCalls.Add(1)

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := nethttp.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", version.UserAgent())
	if r.download {
		req.Header.Set("Accept", "application/zip, application/octet-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := c.httpClient
	if r.download {
		client = c.downloadClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", r.op, ctxErr)
		}
		c.logger.Warn().Err(err).Str("method", r.method).Str("path", r.path).
			Str("request_id", requestID).Msg("API call failed")
		return nil, &NetworkError{Op: r.op, Err: err}
	}

	c.logger.Debug().Str("method", r.method).Str("path", r.path).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Str("request_id", requestID).Msg("API call")

	switch resp.StatusCode {
	case nethttp.StatusTooManyRequests:
		// Retries already exhausted; hold back every caller for a while
		wait := http.RetryAfterBackoff(constants.RetryWaitMin, constants.RetryWaitMax, 0, resp)
		c.limiter.SetCooldown(wait)
		c.logger.Warn().Str("path", r.path).Dur("cooldown", wait).Msg("throttled by server")
	case nethttp.StatusUnauthorized:
		if r.cred != nil && token != "" {
			c.hookMu.RLock()
			hook := c.onUnauthorized
			c.hookMu.RUnlock()
			if hook != nil {
				hook(r.cred)
			}
		}
	}

	return resp, nil
}

// doJSON sends in (if non-nil) as JSON and decodes a 2xx response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, r request, in, out interface{}) error {
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		r.body = data
		r.contentType = "application/json"
	}

	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(r.op, resp, out)
}

func decodeResponse(op string, resp *nethttp.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty response body", op)
		}
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
