// Package validate screens submitted scripts for forbidden calls and module
// loads before any of their code runs.
//
// The check is syntactic. It matches literal receiver.method call sites, bare
// call names, and literal load statements. Aliases, dynamic attribute access,
// and indirect references are not resolved and will pass the check; the
// interpreter's own capability model is the isolation boundary.
package validate

import (
	"slices"

	"go.starlark.net/syntax"
)

// Default denylists.
var (
	DeniedFunctions = []string{"os.system", "subprocess.call"}
	DeniedModules   = []string{"os", "subprocess"}
)

// Default rejection messages.
const (
	DefaultFunctionMessage = "Dangerous function call detected"
	DefaultModuleMessage   = "Dangerous module call detected"
)

// Program is a parsed script that passed validation.
type Program struct {
	Source string
	File   *syntax.File
}

// FileOptions returns the dialect options scripts are parsed with. Engines
// compile validated programs with the same options.
func FileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// Validator checks parsed scripts against the denylists.
type Validator struct {
	functionMsg string
	moduleMsg   string
}

// Option configures a Validator.
type Option func(*Validator)

// WithFunctionMessage overrides the message returned for a denylisted call.
func WithFunctionMessage(msg string) Option {
	return func(v *Validator) {
		if msg != "" {
			v.functionMsg = msg
		}
	}
}

// WithModuleMessage overrides the message returned for a denylisted load.
func WithModuleMessage(msg string) Option {
	return func(v *Validator) {
		if msg != "" {
			v.moduleMsg = msg
		}
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		functionMsg: DefaultFunctionMessage,
		moduleMsg:   DefaultModuleMessage,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate parses src and checks it. A nil error means the script was
// accepted; otherwise the error is a *SyntaxError or a *RejectedError.
func (v *Validator) Validate(filename, src string) (*Program, error) {
	f, err := FileOptions().Parse(filename, src, 0)
	if err != nil {
		return nil, &SyntaxError{Err: err}
	}
	if err := v.Check(f); err != nil {
		return nil, err
	}
	return &Program{Source: src, File: f}, nil
}

// Check walks every node of f and stops at the first denylisted call or load.
func (v *Validator) Check(f *syntax.File) error {
	var found *RejectedError
	var visit func(n syntax.Node) bool
	visit = func(n syntax.Node) bool {
		if found != nil {
			return false
		}
		switch n := n.(type) {
		case *syntax.CallExpr:
			if name := callName(n.Fn); name != "" && slices.Contains(DeniedFunctions, name) {
				found = &RejectedError{Reason: DenylistedFunction, Name: name, msg: v.functionMsg}
			}
		case *syntax.LoadStmt:
			if mod := n.ModuleName(); slices.Contains(DeniedModules, mod) {
				found = &RejectedError{Reason: DenylistedModule, Name: mod, msg: v.moduleMsg}
			}
		case *syntax.WhileStmt:
			// syntax.Walk has no case for while loops and panics on them.
			syntax.Walk(n.Cond, visit)
			for _, stmt := range n.Body {
				syntax.Walk(stmt, visit)
			}
			return false
		}
		return found == nil
	}
	syntax.Walk(f, visit)
	if found != nil {
		return found
	}
	return nil
}

// callName renders the callee of a call site as written, for the two forms
// that are matched: a bare identifier and identifier.attribute.
func callName(fn syntax.Expr) string {
	switch fn := fn.(type) {
	case *syntax.Ident:
		return fn.Name
	case *syntax.DotExpr:
		if recv, ok := fn.X.(*syntax.Ident); ok {
			return recv.Name + "." + fn.Name.Name
		}
	}
	return ""
}
