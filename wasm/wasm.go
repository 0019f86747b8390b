// Package wasm runs scripts in an external WASI interpreter module under
// wazero. The interpreter gets no filesystem, environment, clock sources
// beyond the WASI defaults, or network; memory and wall time can be bounded.
//
// Scripts are still validated on the Starlark grammar before they get here,
// so they must stay within the syntax Python and Starlark share.
package wasm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/caffeineduck/scriptexec/engine"
	"github.com/caffeineduck/scriptexec/validate"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

// Runner holds a compiled interpreter module. Each execution instantiates a
// fresh module instance, so no state is shared between executions.
type Runner struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled wazero.CompiledModule
	cfg      config
	mu       sync.Mutex
	closed   bool
}

// Load reads an interpreter module from path and compiles it.
func Load(ctx context.Context, path string, opts ...Option) (*Runner, error) {
	module, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read interpreter module: %w", err)
	}
	return New(ctx, module, opts...)
}

// New compiles module, a WASI command module for the configured language.
func New(ctx context.Context, module []byte, opts ...Option) (*Runner, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	if cfg.cacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cfg.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	r := &Runner{runtime: rt, cache: cache, cfg: cfg}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		r.Close()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("compile %s: %w", cfg.language.Name(), err)
	}
	r.compiled = compiled

	return r, nil
}

// RunScript runs prog and returns its stdout. On failure stdout is discarded.
func (r *Runner) RunScript(ctx context.Context, prog *validate.Program) (string, error) {
	stdout, stderr, err := r.run(ctx, r.cfg.language.Args(prog.Source))
	if err != nil {
		return "", &engine.ExecutionError{Err: failureMessage(stderr.Stderr(), err)}
	}
	return stdout, nil
}

// CallEntry runs prog with a call harness and returns the entry function's
// decoded JSON result.
func (r *Runner) CallEntry(ctx context.Context, prog *validate.Program, args []any) (any, error) {
	if !engine.HasEntryPoint(prog.File) {
		return nil, &engine.UndefinedEntryPointError{Name: engine.EntryPoint}
	}
	if args == nil {
		args = []any{}
	}

	params, err := json.Marshal(args)
	if err != nil {
		return nil, &engine.ExecutionError{Err: fmt.Errorf("encode parameters: %w", err)}
	}

	code := r.cfg.language.WrapCall(prog.Source, params)
	stdout, frames, err := r.run(ctx, r.cfg.language.Args(code))
	if stdout != "" {
		r.cfg.logger.Debug("script output", zap.String("stdout", stdout))
	}
	if err != nil {
		return nil, &engine.ExecutionError{Err: failureMessage(frames.Stderr(), err)}
	}

	raw, ok := frames.Result()
	if !ok {
		return nil, &engine.ExecutionError{Err: errors.New("no result produced")}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, &engine.ExecutionError{Err: fmt.Errorf("decode result: %w", err)}
	}
	return normalizeNumbers(out), nil
}

func (r *Runner) run(ctx context.Context, args []string) (string, *frameWriter, error) {
	if r.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.timeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	frames := &frameWriter{}

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(frames).
		WithArgs(args...).
		WithName("")

	mod, err := r.runtime.InstantiateModule(ctx, r.compiled, moduleConfig)
	if mod != nil {
		mod.Close(context.Background())
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
		err = nil
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && r.cfg.timeout > 0 {
			err = fmt.Errorf("timeout after %v", r.cfg.timeout)
		}
		return "", frames, err
	}
	return stdout.String(), frames, nil
}

// Close releases the runtime and cache.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	ctx := context.Background()

	var errs []error
	if err := r.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.cache != nil {
		if err := r.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// failureMessage prefers the interpreter's last stderr line, which for
// Python is the exception summary, over the runtime's exit error.
func failureMessage(stderr string, err error) error {
	if strings.HasPrefix(err.Error(), "timeout after") {
		return err
	}
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		return errors.New(last)
	}
	return fmt.Errorf("execution failed: %w", err)
}

// normalizeNumbers turns json.Number into int64 or float64.
func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		for i := range v {
			v[i] = normalizeNumbers(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalizeNumbers(v[k])
		}
		return v
	default:
		return v
	}
}
