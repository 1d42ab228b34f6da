// Package sources implements the evidence collectors behind the
// investigation pipeline: validation, people search, breach index,
// speculative email patterns, public-record scraping, professional
// network, code hosting and username enumeration. Every collector
// satisfies collect.Collector and maps transport failures onto the
// shared fault taxonomy.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/lvonguyen/numintel/internal/collect"
)

// ClientConfig holds the common per-source settings.
type ClientConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`

	// Weight is the static reliability of this source in [0,1]. It is a
	// property of the source, not something the fusion core computes.
	Weight float64 `yaml:"weight"`

	Retry collect.RetryPolicy `yaml:"retry"`
}

// apiKey resolves the configured env var, if any.
func (c ClientConfig) apiKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// httpClient builds the client for one source.
func (c ClientConfig) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// newRequest builds an authenticated GET against the source API.
func newRequest(ctx context.Context, cfg ClientConfig, path string, query url.Values) (*http.Request, error) {
	u := cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if key := cfg.apiKey(); key != "" {
		req.Header.Set("X-API-Key", key)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// faultFromErr maps a transport error onto the fault taxonomy.
func faultFromErr(err error) *collect.Fault {
	var uerr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &collect.Fault{Kind: collect.FaultTimeout, Message: err.Error(), Retriable: true}
	case errors.As(err, &uerr) && uerr.Timeout():
		return &collect.Fault{Kind: collect.FaultTimeout, Message: err.Error(), Retriable: true}
	default:
		return &collect.Fault{Kind: collect.FaultUnknown, Message: err.Error(), Retriable: true}
	}
}

// faultFromStatus maps a non-200 response onto the fault taxonomy.
// 429 and 403 are treated as block signals: scrape-prone sources answer
// both when they decide they dislike the caller.
func faultFromStatus(source string, status int) *collect.Fault {
	msg := fmt.Sprintf("%s returned status %d", source, status)
	switch {
	case status == http.StatusUnauthorized:
		return &collect.Fault{Kind: collect.FaultAuth, Message: msg}
	case status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return &collect.Fault{Kind: collect.FaultBlocked, Message: msg, Retriable: true}
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return &collect.Fault{Kind: collect.FaultTimeout, Message: msg, Retriable: true}
	case status >= 500:
		return &collect.Fault{Kind: collect.FaultUnknown, Message: msg, Retriable: true}
	default:
		return &collect.Fault{Kind: collect.FaultUnknown, Message: msg}
	}
}

// decodeFault wraps a payload decode failure. Malformed payloads are
// never coerced into evidence.
func decodeFault(source string, err error) *collect.Fault {
	return &collect.Fault{
		Kind:    collect.FaultUnknown,
		Message: fmt.Sprintf("%s: decoding response: %v", source, err),
	}
}
