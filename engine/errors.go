package engine

// ExecutionError wraps any failure raised while compiling or running a
// script. Its message is the interpreter's, unchanged.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }

func (e *ExecutionError) Unwrap() error { return e.Err }

// UndefinedEntryPointError is returned in parameterized mode when the script
// defines no top-level entry function. It reads like a bare failed lookup of
// the entry name.
type UndefinedEntryPointError struct {
	Name string
}

func (e *UndefinedEntryPointError) Error() string { return "'" + e.Name + "'" }

// ArityError is returned when the entry function rejects the number of
// parameters it was given. Err is the underlying *ExecutionError.
type ArityError struct {
	Err error
}

func (e *ArityError) Error() string { return e.Err.Error() }

func (e *ArityError) Unwrap() error { return e.Err }
