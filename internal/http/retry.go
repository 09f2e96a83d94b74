package http

import (
	"context"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/suqaba/suqaba-cli/internal/constants"
	"github.com/suqaba/suqaba-cli/internal/logging"
)

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// NewRetryClient wraps base so that only server-directed retries happen.
// Transport failures and ordinary error statuses are returned to the caller untouched.
func NewRetryClient(base *nethttp.Client, logger *logging.Logger) *nethttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = constants.RetryMax
	rc.RetryWaitMin = constants.RetryWaitMin
	rc.RetryWaitMax = constants.RetryWaitMax
	rc.CheckRetry = CheckRetry
	rc.Backoff = RetryAfterBackoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = &retryLogger{logger: logger}

	client := rc.StandardClient()
	client.Timeout = base.Timeout
	return client
}

// IsIdempotent reports whether a request with this method may be sent twice.
func IsIdempotent(method string) bool {
	switch method {
	case nethttp.MethodGet, nethttp.MethodHead, nethttp.MethodOptions, nethttp.MethodDelete, nethttp.MethodPut:
		return true
	}
	return false
}

// CheckRetry retries only when the server explicitly asked for it (429 or 503 carrying a
// Retry-After header) and the request is idempotent. Network errors never retry.
func CheckRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return false, nil
	}
	if resp.StatusCode != nethttp.StatusTooManyRequests && resp.StatusCode != nethttp.StatusServiceUnavailable {
		return false, nil
	}
	if resp.Request != nil && !IsIdempotent(resp.Request.Method) {
		return false, nil
	}
	_, ok := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	return ok, nil
}

// RetryAfterBackoff waits for the server's Retry-After, clamped to [min, max].
func RetryAfterBackoff(min, max time.Duration, attemptNum int, resp *nethttp.Response) time.Duration {
	if resp != nil {
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			if wait < min {
				return min
			}
			if wait > max {
				return max
			}
			return wait
		}
	}
	return retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := nethttp.ParseTime(value); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
