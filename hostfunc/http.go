package hostfunc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
)

// HTTPConfig grants scripts network access. With no AllowedHosts every
// request is refused.
type HTTPConfig struct {
	AllowedHosts   []string
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
}

// HTTP is the "http" module: a requests-like client for scripts.
type HTTP struct {
	client *Client
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	return &HTTP{client: NewClient(ClientConfig{
		AllowedHosts:   cfg.AllowedHosts,
		MaxBodySize:    cfg.MaxBodySize,
		MaxURLLength:   cfg.MaxURLLength,
		RequestTimeout: cfg.RequestTimeout,
	})}
}

// Register installs the client as module "http".
func (h *HTTP) Register(r *Registry) {
	r.Register("http", "request", h.Request)
	r.Register("http", "get", h.Get)
}

// Get is Request with the method forced to GET.
func (h *HTTP) Get(ctx context.Context, args map[string]any) (any, error) {
	fwd := make(map[string]any, len(args)+1)
	for k, v := range args {
		fwd[k] = v
	}
	fwd["method"] = http.MethodGet
	return h.Request(ctx, fwd)
}

// scriptRequest is a decoded http.request(...) call.
type scriptRequest struct {
	method string
	url    string
	body   io.Reader
	header http.Header
}

var allowedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
	http.MethodPatch, http.MethodHead, http.MethodOptions,
}

// Request performs http.request(url=, method=, headers=, body=, json=).
// The result is a dict with status, ok, url, body and headers; ok is true
// for statuses below 400.
func (h *HTTP) Request(ctx context.Context, args map[string]any) (any, error) {
	if len(h.client.Config().AllowedHosts) == 0 {
		return nil, errors.New("http not enabled")
	}
	req, err := h.decode(args)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(ctx, req.method, req.url, req.body, req.header)
	if err != nil {
		var sizeErr *SizeError
		if errors.As(err, &sizeErr) {
			return nil, err
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	headers := make(map[string]any, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return map[string]any{
		"status":  resp.StatusCode,
		"ok":      resp.StatusCode < 400,
		"url":     resp.URL,
		"body":    string(resp.Body),
		"headers": headers,
	}, nil
}

func (h *HTTP) decode(args map[string]any) (*scriptRequest, error) {
	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)
	if !slices.Contains(allowedMethods, method) {
		return nil, fmt.Errorf("unsupported method: %s", method)
	}

	rawURL, _ := args["url"].(string)
	if _, err := h.client.Check(rawURL); err != nil {
		return nil, err
	}

	req := &scriptRequest{method: method, url: rawURL, header: http.Header{}}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if vs, ok := v.(string); ok {
				req.header.Set(k, vs)
			}
		}
	}

	var payload string
	bodyStr, hasBody := args["body"].(string)
	jsonVal, hasJSON := args["json"]
	switch {
	case hasBody && hasJSON:
		return nil, errors.New("body and json are mutually exclusive")
	case hasJSON:
		data, err := json.Marshal(jsonVal)
		if err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		payload = string(data)
		if req.header.Get("Content-Type") == "" {
			req.header.Set("Content-Type", "application/json")
		}
	case hasBody:
		payload = bodyStr
	}
	if payload != "" {
		if limit := h.client.Config().MaxBodySize; int64(len(payload)) > limit {
			return nil, &SizeError{What: "request body", Limit: limit}
		}
		req.body = strings.NewReader(payload)
	}
	return req, nil
}

