// Package source turns the three accepted script forms (inline text, a remote
// URL, an uploaded file) into literal script text.
//
// Nothing is cached: every call re-fetches or re-decodes.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/caffeineduck/scriptexec/hostfunc"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Origin tags where resolved text came from.
type Origin string

const (
	OriginInline   Origin = "inline"
	OriginFetched  Origin = "fetched"
	OriginUploaded Origin = "uploaded"
)

// Script is resolved script text. It is not modified after resolution.
type Script struct {
	Text   string
	Origin Origin
}

// ErrEmptyScript is returned by Inline for empty text.
var ErrEmptyScript = errors.New("empty script")

// FetchError reports a failed remote retrieval. Its message is the transport
// or status error as-is.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError reports bytes that are not valid UTF-8.
type DecodeError struct {
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("'utf-8' codec can't decode input: invalid byte at position %d", e.Offset)
}

// Resolver resolves submissions to script text.
type Resolver struct {
	fetcher       *Fetcher
	maxUploadSize int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFetcher replaces the default fetcher.
func WithFetcher(f *Fetcher) Option {
	return func(r *Resolver) {
		r.fetcher = f
	}
}

// WithMaxUploadSize limits the size of an upload. Larger uploads are
// rejected with a *hostfunc.SizeError.
func WithMaxUploadSize(n int64) Option {
	return func(r *Resolver) {
		r.maxUploadSize = n
	}
}

// DefaultMaxUploadSize bounds uploaded scripts.
const DefaultMaxUploadSize = 10 << 20

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{maxUploadSize: DefaultMaxUploadSize}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcher == nil {
		r.fetcher = NewFetcher(FetchConfig{})
	}
	return r
}

// Inline returns text unchanged, or ErrEmptyScript.
func (r *Resolver) Inline(text string) (Script, error) {
	if text == "" {
		return Script{}, ErrEmptyScript
	}
	return Script{Text: text, Origin: OriginInline}, nil
}

// URL fetches the script body with a blocking GET.
func (r *Resolver) URL(ctx context.Context, rawURL string) (Script, error) {
	body, err := r.fetcher.Get(ctx, rawURL)
	if err != nil {
		return Script{}, &FetchError{URL: rawURL, Err: err}
	}
	text, err := decodeUTF8(body)
	if err != nil {
		return Script{}, err
	}
	return Script{Text: text, Origin: OriginFetched}, nil
}

// Upload reads an uploaded file and decodes it as UTF-8.
func (r *Resolver) Upload(src io.Reader) (Script, error) {
	data, err := hostfunc.ReadLimited(src, r.maxUploadSize, "upload")
	if err != nil {
		return Script{}, err
	}
	text, err := decodeUTF8(data)
	if err != nil {
		return Script{}, err
	}
	return Script{Text: text, Origin: OriginUploaded}, nil
}

func decodeUTF8(data []byte) (string, error) {
	out, n, err := transform.Bytes(encoding.UTF8Validator, data)
	if err != nil {
		return "", &DecodeError{Offset: n}
	}
	return string(out), nil
}
