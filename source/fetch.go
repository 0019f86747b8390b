package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/caffeineduck/scriptexec/hostfunc"
)

const (
	DefaultMaxURLLength   = hostfunc.DefaultMaxURLLength
	DefaultMaxBodySize    = 10 << 20 // 10MB
	DefaultRequestTimeout = hostfunc.DefaultRequestTimeout
)

// FetchConfig bounds remote script retrieval. An empty AllowedHosts list
// permits any host.
type FetchConfig struct {
	AllowedHosts   []string
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
}

// Fetcher performs GET requests for remote scripts.
type Fetcher struct {
	client *hostfunc.Client
}

func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	return &Fetcher{client: hostfunc.NewClient(hostfunc.ClientConfig{
		AllowedHosts:   cfg.AllowedHosts,
		AnyHost:        true,
		MaxBodySize:    cfg.MaxBodySize,
		MaxURLLength:   cfg.MaxURLLength,
		RequestTimeout: cfg.RequestTimeout,
	})}
}

// Get returns the response body of rawURL. Non-2xx statuses are errors, as
// is a body over the size limit.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.client.Do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s for url: %s", statusError(resp.StatusCode), rawURL)
	}
	return resp.Body, nil
}

func statusError(code int) string {
	var kind string
	switch {
	case code >= 400 && code < 500:
		kind = "Client Error"
	case code >= 500 && code < 600:
		kind = "Server Error"
	default:
		kind = "Unexpected Status"
	}
	return fmt.Sprintf("%d %s: %s", code, kind, http.StatusText(code))
}
