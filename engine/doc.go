// Package engine executes validated scripts with the embedded Starlark
// interpreter.
//
// # Modes
//
// Plain-script mode runs the whole program in a fresh, empty global
// environment and returns everything it printed:
//
//	eng := engine.New(hostfunc.NewRegistry())
//	out, err := eng.RunScript(ctx, prog) // "Hello, World!\n"
//
// Parameterized mode runs the program, then calls its top-level function
// named custom with the given positional arguments:
//
//	v, err := eng.CallEntry(ctx, prog, []any{int64(5)}) // 10
//
// Output is all-or-nothing: when execution fails, nothing printed before the
// failure is returned.
//
// # Limits
//
// By default there is no timeout and no step ceiling; a script that never
// terminates blocks its caller until the context is cancelled. Use
// [WithTimeout] and [WithMaxSteps] to bound execution.
//
// # Modules
//
// Scripts import with load(). The Starlark math, json and time modules are
// always available; capabilities from the [hostfunc.Registry] are exposed
// under their module names.
package engine
