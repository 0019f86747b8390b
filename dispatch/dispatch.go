// Package dispatch decides how a submission runs and drives it through
// source resolution, validation and execution.
//
// Mode precedence for Execute:
//
//  1. script, parameters and url all empty: ErrMissingInput
//  2. parameters non-empty: parameterized mode (url, if set, replaces the script)
//  3. url non-empty: fetch, then plain mode
//  4. otherwise plain mode on the inline script
//
// Uploads always run in plain mode.
package dispatch

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/caffeineduck/scriptexec/logger"
	"github.com/caffeineduck/scriptexec/source"
	"github.com/caffeineduck/scriptexec/validate"
	"go.uber.org/zap"
)

// Filename is the name scripts are parsed under.
const Filename = "<string>"

// Mode is how a script is executed.
type Mode string

const (
	ModePlain         Mode = "plain"
	ModeParameterized Mode = "parameterized"
)

// Runner executes validated programs. *engine.Engine and *wasm.Runner
// implement it.
type Runner interface {
	RunScript(ctx context.Context, prog *validate.Program) (string, error)
	CallEntry(ctx context.Context, prog *validate.Program, args []any) (any, error)
}

// Submission is one JSON request. Parameters is nil when the request
// carried none.
type Submission struct {
	Script     string
	Parameters []any
	URL        string
}

// Outcome describes a finished dispatch. Mode and Origin are set as far as
// dispatch got, even when an error is returned.
type Outcome struct {
	Mode     Mode
	Origin   source.Origin
	Result   any
	Duration time.Duration
}

// Messages are the fixed client-facing messages.
type Messages struct {
	MissingInput   string
	ResultNotFound string
	ScriptNotFound string
	ParamsNotFound string
}

// DefaultMessages returns the built-in messages.
func DefaultMessages() Messages {
	return Messages{
		MissingInput:   "Add data",
		ResultNotFound: "May be you haven't added a print statement or your script is executed successfully",
		ScriptNotFound: "script not found",
		ParamsNotFound: "parameters not found",
	}
}

// Dispatcher routes submissions. It holds no per-request state and is safe
// for concurrent use.
type Dispatcher struct {
	resolver  *source.Resolver
	validator *validate.Validator
	runner    Runner
	messages  Messages
	logger    *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMessages overrides the client messages. Empty fields keep the default.
func WithMessages(m Messages) Option {
	return func(d *Dispatcher) {
		if m.MissingInput != "" {
			d.messages.MissingInput = m.MissingInput
		}
		if m.ResultNotFound != "" {
			d.messages.ResultNotFound = m.ResultNotFound
		}
		if m.ScriptNotFound != "" {
			d.messages.ScriptNotFound = m.ScriptNotFound
		}
		if m.ParamsNotFound != "" {
			d.messages.ParamsNotFound = m.ParamsNotFound
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a Dispatcher.
func New(resolver *source.Resolver, validator *validate.Validator, runner Runner, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver:  resolver,
		validator: validator,
		runner:    runner,
		messages:  DefaultMessages(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute handles the execute request shape.
func (d *Dispatcher) Execute(ctx context.Context, sub Submission) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{Mode: ModePlain}

	var err error
	switch {
	case sub.Script == "" && len(sub.Parameters) == 0 && sub.URL == "":
		err = d.missing(ErrMissingInput)
	case len(sub.Parameters) > 0:
		out.Mode = ModeParameterized
		err = d.parameterized(ctx, out, sub.Script, sub.URL, sub.Parameters)
	case sub.URL != "":
		var script source.Script
		script, err = d.resolver.URL(ctx, sub.URL)
		if err == nil {
			err = d.plain(ctx, out, script)
		}
	default:
		var script source.Script
		script, err = d.resolver.Inline(sub.Script)
		if err == nil {
			err = d.plain(ctx, out, script)
		}
	}

	return d.finish(ctx, out, start, err)
}

// ExecuteParams handles the parameterized request shape. An empty, non-nil
// parameter list calls the entry function with no arguments.
func (d *Dispatcher) ExecuteParams(ctx context.Context, sub Submission) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{Mode: ModeParameterized}

	var err error
	if sub.Parameters == nil {
		err = d.missing(ErrParamsNotFound)
	} else {
		err = d.parameterized(ctx, out, sub.Script, sub.URL, sub.Parameters)
	}

	return d.finish(ctx, out, start, err)
}

// ExecuteUpload runs an uploaded file in plain mode.
func (d *Dispatcher) ExecuteUpload(ctx context.Context, file io.Reader) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{Mode: ModePlain, Origin: source.OriginUploaded}

	script, err := d.resolver.Upload(file)
	if err == nil {
		err = d.plain(ctx, out, script)
	}

	return d.finish(ctx, out, start, err)
}

func (d *Dispatcher) plain(ctx context.Context, out *Outcome, script source.Script) error {
	out.Origin = script.Origin

	prog, err := d.validator.Validate(Filename, script.Text)
	if err != nil {
		return err
	}

	text, err := d.runner.RunScript(ctx, prog)
	if err != nil {
		return err
	}
	if text == "" {
		out.Result = d.messages.ResultNotFound
		return nil
	}
	out.Result = text
	return nil
}

func (d *Dispatcher) parameterized(ctx context.Context, out *Outcome, text, rawURL string, params []any) error {
	var (
		script source.Script
		err    error
	)
	if rawURL != "" {
		script, err = d.resolver.URL(ctx, rawURL)
	} else {
		script, err = d.resolver.Inline(text)
	}
	if errors.Is(err, source.ErrEmptyScript) || (err == nil && script.Text == "") {
		return d.missing(ErrScriptNotFound)
	}
	if err != nil {
		return err
	}
	out.Origin = script.Origin

	prog, err := d.validator.Validate(Filename, script.Text)
	if err != nil {
		return err
	}

	result, err := d.runner.CallEntry(ctx, prog, params)
	if err != nil {
		return err
	}
	out.Result = result
	return nil
}

func (d *Dispatcher) missing(kind error) error {
	msg := kind.Error()
	switch kind {
	case ErrMissingInput:
		msg = d.messages.MissingInput
	case ErrScriptNotFound:
		msg = d.messages.ScriptNotFound
	case ErrParamsNotFound:
		msg = d.messages.ParamsNotFound
	}
	return &messageError{kind: kind, msg: msg}
}

func (d *Dispatcher) finish(ctx context.Context, out *Outcome, start time.Time, err error) (*Outcome, error) {
	out.Duration = time.Since(start)

	log := logger.FromContext(ctx, d.logger).With(
		zap.String("mode", string(out.Mode)),
		zap.String("origin", string(out.Origin)),
		zap.Duration("duration", out.Duration),
		zap.String("outcome", Kind(err)),
	)

	var rejected *validate.RejectedError
	switch {
	case err == nil:
		log.Info("script executed")
	case errors.As(err, &rejected):
		log.Warn("script rejected", zap.String("name", rejected.Name))
	case IsClientFault(err):
		log.Info("script failed", zap.Error(err))
	default:
		log.Error("dispatch failed", zap.Error(err))
	}

	if err != nil {
		out.Result = nil
	}
	return out, err
}
