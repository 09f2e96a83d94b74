// Package http builds the HTTP clients used to talk to the Suqaba API: proxy
// configuration, server-directed retries and a long-lived client for result downloads.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/suqaba/suqaba-cli/internal/config"
	"github.com/suqaba/suqaba-cli/internal/logging"
)

// NewAPIClient returns the client used for JSON API calls: proxy aware, with
// server-directed retries and the overall request timeout.
func NewAPIClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	base, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewRetryClient(base, logger), nil
}

// NewDownloadClient returns a client for streaming result archives.
// It has no overall timeout; callers bound the transfer with their context.
func NewDownloadClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	client, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	client.Timeout = 0

	// NTLM wraps the transport; leave it alone
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		return client, nil
	}

	tr.DisableCompression = true // archives are already compressed
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Proxies often break HTTP/2 streams mid-transfer
	if tr.Proxy != nil || os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return client, nil
}
