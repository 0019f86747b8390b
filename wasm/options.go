package wasm

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Option configures a Runner.
type Option func(*config)

type config struct {
	language         Language
	timeout          time.Duration
	memoryLimitPages uint32 // each page is 64KB, 0 = wazero default (4GB)
	cacheDir         string
	logger           *zap.Logger
}

func defaultConfig() config {
	return config{
		language: Python{},
		logger:   zap.NewNop(),
	}
}

// WithLanguage selects the interpreter adapter. Default is Python.
func WithLanguage(l Language) Option {
	return func(c *config) {
		c.language = l
	}
}

// WithTimeout bounds each execution. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMemoryLimit sets the maximum linear memory of the interpreter in
// 64KB pages.
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithCacheDir persists compiled modules in dir across restarts.
func WithCacheDir(dir string) Option {
	return func(c *config) {
		c.cacheDir = dir
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit16MB  uint32 = 256
	MemoryLimit64MB  uint32 = 1024
	MemoryLimit256MB uint32 = 4096
	MemoryLimit1GB   uint32 = 16384
)

// ParseMemoryLimit maps "16mb", "64mb", "256mb" or "1gb" to pages. Anything
// else yields 0.
func ParseMemoryLimit(s string) uint32 {
	switch s {
	case "16mb":
		return MemoryLimit16MB
	case "64mb":
		return MemoryLimit64MB
	case "256mb":
		return MemoryLimit256MB
	case "1gb":
		return MemoryLimit1GB
	default:
		return 0
	}
}

// DefaultCacheDir is where compiled interpreter modules are cached when no
// directory is given.
func DefaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "scriptexec")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "scriptexec")
	}
	return filepath.Join(os.TempDir(), "scriptexec-cache")
}
