package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/caffeineduck/scriptexec/hostfunc"
	"github.com/caffeineduck/scriptexec/validate"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"
)

// EntryPoint is the function invoked in parameterized mode.
const EntryPoint = "custom"

const contextKey = "context"

// Engine runs validated programs. It holds no per-execution state and is safe
// for concurrent use.
type Engine struct {
	registry *hostfunc.Registry
	cfg      config
}

// New creates an Engine whose scripts can load the modules in registry.
func New(registry *hostfunc.Registry, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if registry == nil {
		registry = hostfunc.NewRegistry()
	}
	return &Engine{registry: registry, cfg: cfg}
}

// RunScript executes prog and returns the text it printed. On failure the
// captured text is discarded.
func (e *Engine) RunScript(ctx context.Context, prog *validate.Program) (string, error) {
	var out bytes.Buffer
	thread, done := e.newThread(ctx, "script", func(msg string) {
		out.WriteString(msg)
		out.WriteByte('\n')
	})
	defer done()

	if _, err := e.exec(thread, prog); err != nil {
		return "", err
	}
	return out.String(), nil
}

// CallEntry executes prog and calls its top-level custom function with args
// as positional arguments.
func (e *Engine) CallEntry(ctx context.Context, prog *validate.Program, args []any) (any, error) {
	if !HasEntryPoint(prog.File) {
		return nil, &UndefinedEntryPointError{Name: EntryPoint}
	}

	thread, done := e.newThread(ctx, EntryPoint, func(msg string) {
		e.cfg.logger.Debug("script output", zap.String("line", msg))
	})
	defer done()

	globals, err := e.exec(thread, prog)
	if err != nil {
		return nil, err
	}

	fn, ok := globals[EntryPoint].(starlark.Callable)
	if !ok {
		return nil, &UndefinedEntryPointError{Name: EntryPoint}
	}

	params := make(starlark.Tuple, len(args))
	for i, arg := range args {
		v, err := ToStarlark(arg)
		if err != nil {
			return nil, &ExecutionError{Err: fmt.Errorf("parameter %d: %w", i, err)}
		}
		params[i] = v
	}

	res, err := starlark.Call(thread, fn, params, nil)
	if err != nil {
		failed := e.failure(thread, err)
		if f, ok := fn.(*starlark.Function); ok && !acceptsPositional(f, len(params)) {
			return nil, &ArityError{Err: failed}
		}
		return nil, failed
	}

	out, err := FromStarlark(res)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	return out, nil
}

// HasEntryPoint reports whether f declares the entry function at top level.
func HasEntryPoint(f *syntax.File) bool {
	for _, stmt := range f.Stmts {
		if def, ok := stmt.(*syntax.DefStmt); ok && def.Name.Name == EntryPoint {
			return true
		}
	}
	return false
}

// acceptsPositional reports whether fn can be called with n positional
// arguments and no keywords.
func acceptsPositional(fn *starlark.Function, n int) bool {
	positional := fn.NumParams() - fn.NumKwonlyParams()
	if fn.HasVarargs() {
		positional--
	}
	if fn.HasKwargs() {
		positional--
	}
	if n > positional && !fn.HasVarargs() {
		return false
	}
	for i := n; i < positional; i++ {
		if fn.ParamDefault(i) == nil {
			return false
		}
	}
	return true
}

// exec compiles prog into a fresh environment and runs its top level.
func (e *Engine) exec(thread *starlark.Thread, prog *validate.Program) (starlark.StringDict, error) {
	compiled, err := starlark.FileProgram(prog.File, isPredeclared)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	globals, err := compiled.Init(thread, nil)
	if err != nil {
		return nil, e.failure(thread, err)
	}
	return globals, nil
}

// newThread prepares an isolated interpreter thread. The returned function
// releases the cancellation hook and must be called when execution ends.
func (e *Engine) newThread(ctx context.Context, name string, onPrint func(string)) (*starlark.Thread, func()) {
	registry := e.registry.Clone()
	if e.cfg.kv {
		hostfunc.NewKV(e.cfg.kvConfig).Register(registry)
	}

	cancel := func() {}
	if e.cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.cfg.timeout)
	}

	thread := &starlark.Thread{
		Name:  name,
		Print: func(_ *starlark.Thread, msg string) { onPrint(msg) },
		Load:  newLoader(registry).load,
	}
	thread.SetLocal(contextKey, ctx)
	if e.cfg.maxSteps > 0 {
		thread.SetMaxExecutionSteps(e.cfg.maxSteps)
	}

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})

	return thread, func() {
		stop()
		cancel()
	}
}

func (e *Engine) failure(thread *starlark.Thread, err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		e.cfg.logger.Debug("script failed", zap.String("backtrace", evalErr.Backtrace()))
	}
	if e.cfg.timeout > 0 && errors.Is(threadContext(thread).Err(), context.DeadlineExceeded) {
		return &ExecutionError{Err: fmt.Errorf("timeout after %v: %w", e.cfg.timeout, err)}
	}
	return &ExecutionError{Err: err}
}

// isPredeclared keeps the global environment empty: only the interpreter's
// universal builtins resolve without a load.
func isPredeclared(string) bool { return false }

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}
