package wasm

import (
	"strconv"

	"github.com/caffeineduck/scriptexec/engine"
)

// Language adapts a WASI interpreter build to the two execution modes.
type Language interface {
	// Name identifies the interpreter in logs and errors.
	Name() string

	// Args returns the command line that runs code, e.g.
	// []string{"python", "-c", code}.
	Args(code string) []string

	// WrapCall appends a harness to code that calls the entry function with
	// paramsJSON decoded as positional arguments and writes the JSON result
	// to stderr as a result frame.
	WrapCall(code string, paramsJSON []byte) string
}

// Python drives a CPython or RustPython WASI build.
type Python struct{}

func (Python) Name() string { return "python" }

func (Python) Args(code string) []string {
	return []string{"python", "-c", code}
}

func (Python) WrapCall(code string, paramsJSON []byte) string {
	return code + `

import json as __rx_json, sys as __rx_sys
__rx_result = ` + engine.EntryPoint + `(*__rx_json.loads(` + strconv.Quote(string(paramsJSON)) + `))
__rx_sys.stderr.write("\x00` + frameTag + `" + __rx_json.dumps(__rx_result) + "\x00")
__rx_sys.stderr.flush()
`
}
