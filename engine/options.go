package engine

import (
	"time"

	"github.com/caffeineduck/scriptexec/hostfunc"
	"go.uber.org/zap"
)

// Option configures an Engine.
type Option func(*config)

type config struct {
	timeout  time.Duration
	maxSteps uint64
	kv       bool
	kvConfig hostfunc.KVConfig
	logger   *zap.Logger
}

func defaultConfig() config {
	return config{
		logger: zap.NewNop(),
	}
}

// WithTimeout bounds each execution. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxSteps bounds the number of interpreter steps per execution. Zero
// means no limit.
func WithMaxSteps(n uint64) Option {
	return func(c *config) {
		c.maxSteps = n
	}
}

// WithKV gives every execution its own "kv" module. The store is discarded
// when the execution ends.
func WithKV(cfg ...hostfunc.KVConfig) Option {
	return func(c *config) {
		c.kv = true
		c.kvConfig = hostfunc.DefaultKVConfig()
		if len(cfg) > 0 {
			c.kvConfig = cfg[0]
		}
	}
}

// WithLogger sets the logger. Output printed in parameterized mode is logged
// at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
