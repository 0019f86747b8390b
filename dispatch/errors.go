package dispatch

import (
	"errors"

	"github.com/caffeineduck/scriptexec/engine"
	"github.com/caffeineduck/scriptexec/hostfunc"
	"github.com/caffeineduck/scriptexec/source"
	"github.com/caffeineduck/scriptexec/validate"
)

var (
	// ErrMissingInput means the submission had no script, parameters or url.
	ErrMissingInput = errors.New("missing input")
	// ErrScriptNotFound means parameterized mode resolved an empty script.
	ErrScriptNotFound = errors.New("script not found")
	// ErrParamsNotFound means the parameterized endpoint got no parameters.
	ErrParamsNotFound = errors.New("parameters not found")
)

// messageError carries a configured client message for a sentinel.
type messageError struct {
	kind error
	msg  string
}

func (e *messageError) Error() string { return e.msg }

func (e *messageError) Unwrap() error { return e.kind }

// Kind names the failure class of err, for logs and metrics.
func Kind(err error) string {
	var (
		fetchErr  *source.FetchError
		decodeErr *source.DecodeError
		syntaxErr *validate.SyntaxError
		rejected  *validate.RejectedError
		undefErr  *engine.UndefinedEntryPointError
		arityErr  *engine.ArityError
		execErr   *engine.ExecutionError
		sizeErr   *hostfunc.SizeError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.Is(err, ErrScriptNotFound):
		return "script_not_found"
	case errors.Is(err, ErrParamsNotFound):
		return "params_not_found"
	case errors.As(err, &fetchErr):
		return "fetch_error"
	case errors.As(err, &sizeErr):
		return "too_large"
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.As(err, &syntaxErr):
		return "syntax_error"
	case errors.As(err, &rejected):
		return rejected.Reason.String()
	case errors.As(err, &undefErr):
		return "undefined_entry_point"
	case errors.As(err, &arityErr):
		return "arity_mismatch"
	case errors.As(err, &execErr):
		return "execution_failure"
	default:
		return "internal"
	}
}

// IsClientFault reports whether err was caused by the submission rather
// than by the service.
func IsClientFault(err error) bool {
	return err != nil && Kind(err) != "internal"
}
