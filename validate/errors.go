package validate

// Reason classifies a rejection.
type Reason int

const (
	DenylistedFunction Reason = iota + 1
	DenylistedModule
)

func (r Reason) String() string {
	switch r {
	case DenylistedFunction:
		return "denylisted_function"
	case DenylistedModule:
		return "denylisted_module"
	default:
		return "unknown"
	}
}

// SyntaxError reports a script that could not be parsed.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string { return e.Err.Error() }

func (e *SyntaxError) Unwrap() error { return e.Err }

// RejectedError reports a denylisted call or load. Name is the matched form,
// e.g. "os.system" or "subprocess".
type RejectedError struct {
	Reason Reason
	Name   string
	msg    string
}

func (e *RejectedError) Error() string { return e.msg }
