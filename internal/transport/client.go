// Package transport is the JSON-over-HTTP client shared by the REST backends.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mhpenta/storygen"
)

// DefaultMaxErrorBodyBytes caps how much of a non-2xx body is kept in errors.
const DefaultMaxErrorBodyBytes = 4 << 10

// Options configures a Client.
type Options struct {
	Provider storygen.Provider

	// BaseURL is required; request paths resolve relative to it.
	BaseURL string

	// APIKey is sent as a Bearer token when set.
	APIKey string

	// Timeout bounds a single attempt; zero keeps the HTTP client's value.
	Timeout time.Duration

	// MaxRetries after the first attempt for connection errors, 429 and 5xx.
	MaxRetries int

	// HTTPClient replaces the pooled default client (optional).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client posts JSON requests to one provider.
type Client struct {
	provider   storygen.Provider
	baseURL    *url.URL
	apiKey     string
	http       *retryablehttp.Client
	maxErrBody int64
}

// New builds a Client. It fails when BaseURL is not an absolute URL.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("transport: base url is required")
	}
	bu, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("transport: parsing base url: %w", err)
	}
	if bu.Scheme == "" || bu.Host == "" {
		return nil, fmt.Errorf("transport: base url %q must be absolute", raw)
	}
	// Treat the base path as a prefix so relative paths resolve under it.
	if !strings.HasSuffix(bu.Path, "/") {
		bu.Path += "/"
	}

	rc := newRetryClient(opts)

	return &Client{
		provider:   opts.Provider,
		baseURL:    bu,
		apiKey:     strings.TrimSpace(opts.APIKey),
		http:       rc,
		maxErrBody: DefaultMaxErrorBodyBytes,
	}, nil
}

// StandardClient returns a plain *http.Client whose transport applies the
// same bounded retry policy, for SDKs that accept their own HTTP client.
func StandardClient(opts Options) *http.Client {
	return newRetryClient(opts).StandardClient()
}

func newRetryClient(opts Options) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = max(opts.MaxRetries, 0)
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 4 * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.HTTPClient != nil {
		hc := *opts.HTTPClient
		rc.HTTPClient = &hc
	}
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	if opts.Logger != nil {
		rc.Logger = opts.Logger.With("provider", opts.Provider.String())
	} else {
		rc.Logger = nil
	}

	return rc
}

// Resolve returns the absolute URL for path.
func (c *Client) Resolve(path string) (string, error) {
	u, err := url.Parse(strings.TrimPrefix(strings.TrimSpace(path), "/"))
	if err != nil {
		return "", err
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// PostJSON sends in as a JSON body to path and decodes the response into out.
// Non-2xx responses become *storygen.StatusError, and 429 becomes
// *storygen.RateLimitError wrapping it.
func (c *Client) PostJSON(ctx context.Context, path string, in any, out any) error {
	target, err := c.Resolve(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", c.provider, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", c.provider, err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, c.maxErrBody))
	se := &storygen.StatusError{
		Provider:   c.provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(raw)),
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &storygen.RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			LimitType:  "requests",
			Provider:   c.provider,
			Err:        se,
		}
	}
	return se
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
