package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second
)

var (
	ErrURLRequired = errors.New("url required")
	ErrURLTooLong  = errors.New("url exceeds max length")
)

// SizeError reports a body larger than the configured limit.
type SizeError struct {
	What  string
	Limit int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s exceeds max size of %d bytes", e.What, e.Limit)
}

// ClientConfig is the outbound policy shared by script HTTP access and
// remote script retrieval. An empty AllowedHosts list refuses every host
// unless AnyHost is set.
type ClientConfig struct {
	AllowedHosts   []string
	AnyHost        bool
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
}

// Client makes outbound requests under a ClientConfig.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final URL after redirects.
	URL string
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() ClientConfig {
	return c.cfg
}

// Check applies the URL policy: length, scheme and host.
func (c *Client) Check(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, ErrURLRequired
	}
	if len(rawURL) > c.cfg.MaxURLLength {
		return nil, ErrURLTooLong
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %s", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("no connection adapters were found for %q", rawURL)
	}
	if host := parsed.Hostname(); !c.hostAllowed(host) {
		return nil, fmt.Errorf("host not allowed: %s", host)
	}
	return parsed, nil
}

// Do checks rawURL, sends the request and reads the whole response body.
// Transport errors are returned unwrapped. A body over MaxBodySize is a
// *SizeError, never a truncated body.
func (c *Client) Do(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) (*Response, error) {
	if _, err := c.Check(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := ReadLimited(resp.Body, c.cfg.MaxBodySize, "response body")
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        resp.Request.URL.String(),
	}, nil
}

func (c *Client) hostAllowed(host string) bool {
	if len(c.cfg.AllowedHosts) == 0 {
		return c.cfg.AnyHost
	}
	for _, allowed := range c.cfg.AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// ReadLimited reads all of r, failing with a *SizeError naming what when r
// holds more than limit bytes.
func ReadLimited(r io.Reader, limit int64, what string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	if int64(len(data)) > limit {
		return nil, &SizeError{What: what, Limit: limit}
	}
	return data, nil
}
