package hostfunc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientAnyHost(t *testing.T) {
	open := NewClient(ClientConfig{AnyHost: true})
	if _, err := open.Check("https://anywhere.example/x"); err != nil {
		t.Errorf("expected any host to pass, got %v", err)
	}

	closed := NewClient(ClientConfig{})
	if _, err := closed.Check("https://anywhere.example/x"); err == nil || err.Error() != "host not allowed: anywhere.example" {
		t.Errorf("expected host refusal, got %v", err)
	}
}

func TestClientAllowListOverridesAnyHost(t *testing.T) {
	c := NewClient(ClientConfig{AnyHost: true, AllowedHosts: []string{"allowed.com"}})
	if _, err := c.Check("https://api.allowed.com/"); err != nil {
		t.Errorf("expected subdomain to pass, got %v", err)
	}
	if _, err := c.Check("https://other.com/"); err == nil {
		t.Error("expected other host to be refused")
	}
}

func TestClientCheckErrors(t *testing.T) {
	c := NewClient(ClientConfig{AnyHost: true, MaxURLLength: 30})

	if _, err := c.Check(""); !errors.Is(err, ErrURLRequired) {
		t.Errorf("expected ErrURLRequired, got %v", err)
	}
	if _, err := c.Check("https://example.com/" + strings.Repeat("a", 30)); !errors.Is(err, ErrURLTooLong) {
		t.Errorf("expected ErrURLTooLong, got %v", err)
	}
	if _, err := c.Check("file:///etc/passwd"); err == nil || err.Error() != `no connection adapters were found for "file:///etc/passwd"` {
		t.Errorf("expected scheme error, got %v", err)
	}
}

func TestClientDoReadsBodyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Req") != "1" {
			t.Errorf("expected header to be forwarded")
		}
		w.Write([]byte("12345"))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{AnyHost: true, MaxBodySize: 5})
	resp, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, http.Header{"X-Req": {"1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "12345" || resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("abcd"), 4, "upload")
	if err != nil || string(data) != "abcd" {
		t.Errorf("expected full read at the limit, got %q %v", data, err)
	}

	_, err = ReadLimited(strings.NewReader("abcde"), 4, "upload")
	var sizeErr *SizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected size error, got %v", err)
	}
	if sizeErr.Limit != 4 || err.Error() != "upload exceeds max size of 4 bytes" {
		t.Errorf("unexpected error %v", err)
	}
}
