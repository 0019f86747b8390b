package wasm

import (
	"bytes"
	"strings"
	"sync"
)

// Result frames are written by the call harness on stderr:
// \x00RESULT:{json}\x00
const (
	framePrefix = "\x00"
	frameTag    = "RESULT:"
	frameSuffix = "\x00"
)

// frameWriter splits a module's stderr into plain text and result frames.
type frameWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	stderr bytes.Buffer
	result []byte
	found  bool
}

func (f *frameWriter) Write(data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf.Write(data)
	open := framePrefix + frameTag

	for {
		content := f.buf.String()
		start := strings.Index(content, open)
		if start == -1 {
			// Keep a possible partial frame opener for the next write.
			keep := partialSuffix(content, open)
			f.stderr.WriteString(content[:len(content)-keep])
			f.buf.Reset()
			f.buf.WriteString(content[len(content)-keep:])
			break
		}

		f.stderr.WriteString(content[:start])

		body := content[start+len(open):]
		end := strings.Index(body, frameSuffix)
		if end == -1 {
			f.buf.Reset()
			f.buf.WriteString(content[start:])
			break
		}

		f.result = []byte(body[:end])
		f.found = true
		f.buf.Reset()
		f.buf.WriteString(body[end+len(frameSuffix):])
	}

	return len(data), nil
}

// Result returns the last complete result frame.
func (f *frameWriter) Result() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.found
}

// Stderr returns everything that was not part of a frame.
func (f *frameWriter) Stderr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stderr.String() + f.buf.String()
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of token.
func partialSuffix(s, token string) int {
	for n := len(token) - 1; n > 0; n-- {
		if strings.HasSuffix(s, token[:n]) {
			return n
		}
	}
	return 0
}
