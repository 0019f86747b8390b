package hostfunc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPBlockedWhenNoHosts(t *testing.T) {
	h := NewHTTP(HTTPConfig{AllowedHosts: nil})
	_, err := h.Get(context.Background(), map[string]any{"url": "https://example.com"})
	if err == nil || err.Error() != "http not enabled" {
		t.Errorf("expected 'http not enabled', got %v", err)
	}
}

func TestHTTPBlockedForUnallowedHost(t *testing.T) {
	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"allowed.com"}})
	_, err := h.Get(context.Background(), map[string]any{"url": "https://evil.com"})
	if err == nil || err.Error() != "host not allowed: evil.com" {
		t.Errorf("expected 'host not allowed', got %v", err)
	}
}

func TestHTTPBypassQueryParam(t *testing.T) {
	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"allowed.com"}})
	_, err := h.Get(context.Background(), map[string]any{"url": "https://evil.com/?x=allowed.com"})
	if err == nil || err.Error() != "host not allowed: evil.com" {
		t.Errorf("query param bypass should be blocked, got %v", err)
	}
}

func TestHTTPBypassSubdomainSuffix(t *testing.T) {
	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"allowed.com"}})
	_, err := h.Get(context.Background(), map[string]any{"url": "https://allowed.com.evil.com/"})
	if err == nil || err.Error() != "host not allowed: allowed.com.evil.com" {
		t.Errorf("subdomain suffix bypass should be blocked, got %v", err)
	}
}

func TestHTTPGetAllowsExactHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("X-Test", "yes")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"127.0.0.1"}})
	result, err := h.Get(context.Background(), map[string]any{"url": server.URL, "method": "DELETE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := result.(map[string]any)
	if data["status"].(int) != 200 {
		t.Errorf("expected status 200, got %v", data["status"])
	}
	if data["body"] != `{"ok": true}` {
		t.Errorf("unexpected body %v", data["body"])
	}
	if data["ok"] != true {
		t.Errorf("expected ok, got %v", data["ok"])
	}
	if data["url"] != server.URL {
		t.Errorf("expected url %s, got %v", server.URL, data["url"])
	}
	if data["headers"].(map[string]any)["X-Test"] != "yes" {
		t.Errorf("expected X-Test header, got %v", data["headers"])
	}
}

func TestHTTPRequestPostsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "text/plain" {
			t.Errorf("expected header to be forwarded")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"127.0.0.1"}})
	result, err := h.Request(context.Background(), map[string]any{
		"url":     server.URL,
		"method":  "post",
		"body":    "payload",
		"headers": map[string]any{"Content-Type": "text/plain"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.(map[string]any)["status"].(int) != http.StatusCreated {
		t.Errorf("expected 201, got %v", result)
	}
}

func TestHTTPUnsupportedMethod(t *testing.T) {
	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"example.com"}})
	_, err := h.Request(context.Background(), map[string]any{"url": "https://example.com", "method": "TRACE"})
	if err == nil || err.Error() != "unsupported method: TRACE" {
		t.Errorf("expected unsupported method, got %v", err)
	}
}

func TestHTTPMissingURL(t *testing.T) {
	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"example.com"}})
	_, err := h.Get(context.Background(), map[string]any{})
	if err == nil || err.Error() != "url required" {
		t.Errorf("expected 'url required', got %v", err)
	}
}

func TestHTTPSchemeRestricted(t *testing.T) {
	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"example.com"}})
	_, err := h.Get(context.Background(), map[string]any{"url": "ftp://example.com/x"})
	if err == nil || !strings.HasPrefix(err.Error(), "no connection adapters were found") {
		t.Errorf("expected scheme error, got %v", err)
	}
}

func TestHTTPURLTooLong(t *testing.T) {
	h := NewHTTP(HTTPConfig{
		AllowedHosts: []string{"example.com"},
		MaxURLLength: 100,
	})

	longURL := "https://example.com/" + strings.Repeat("a", 200)
	_, err := h.Get(context.Background(), map[string]any{"url": longURL})
	if err == nil || err.Error() != "url exceeds max length" {
		t.Errorf("expected 'url exceeds max length' error, got %v", err)
	}
}

func TestHTTPRegister(t *testing.T) {
	r := NewRegistry()
	NewHTTP(HTTPConfig{}).Register(r)

	for _, name := range []string{"get", "request"} {
		if _, ok := r.Get("http", name); !ok {
			t.Errorf("expected http.%s to be registered", name)
		}
	}
}

func TestHTTPRequestSendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type, got %q", r.Header.Get("Content-Type"))
		}
		data, _ := io.ReadAll(r.Body)
		if string(data) != `{"n":1}` {
			t.Errorf("unexpected body %s", data)
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"127.0.0.1"}})
	result, err := h.Request(context.Background(), map[string]any{
		"url":    server.URL,
		"method": "POST",
		"json":   map[string]any{"n": int64(1)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := result.(map[string]any)
	if data["status"].(int) != http.StatusBadRequest || data["ok"] != false {
		t.Errorf("expected a failed 400 response, got %v", data)
	}
}

func TestHTTPBodyAndJSONExclusive(t *testing.T) {
	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"example.com"}})
	_, err := h.Request(context.Background(), map[string]any{
		"url":  "https://example.com",
		"body": "x",
		"json": []any{},
	})
	if err == nil || err.Error() != "body and json are mutually exclusive" {
		t.Errorf("expected exclusivity error, got %v", err)
	}
}

func TestHTTPRequestBodyTooLarge(t *testing.T) {
	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"example.com"}, MaxBodySize: 4})
	_, err := h.Request(context.Background(), map[string]any{
		"url":    "https://example.com",
		"method": "POST",
		"body":   "too long",
	})
	var sizeErr *SizeError
	if !errors.As(err, &sizeErr) || sizeErr.What != "request body" {
		t.Errorf("expected request body size error, got %v", err)
	}
}

func TestHTTPResponseOverLimitIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"127.0.0.1"}, MaxBodySize: 5})
	_, err := h.Get(context.Background(), map[string]any{"url": server.URL})

	var sizeErr *SizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected size error, got %v", err)
	}
	if err.Error() != "response body exceeds max size of 5 bytes" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestHTTPTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	h := NewHTTP(HTTPConfig{AllowedHosts: []string{"127.0.0.1"}})
	_, err := h.Get(context.Background(), map[string]any{"url": addr})
	if err == nil || !strings.HasPrefix(err.Error(), "request failed: ") {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
}
