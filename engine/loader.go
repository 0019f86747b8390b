package engine

import (
	"fmt"
	"sort"

	"github.com/caffeineduck/scriptexec/hostfunc"
	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// stdlib modules every script may load.
var stdlib = map[string]starlark.Value{
	"json": starjson.Module,
	"math": starmath.Module,
	"time": startime.Module,
}

type loader struct {
	registry *hostfunc.Registry
}

func newLoader(registry *hostfunc.Registry) *loader {
	return &loader{registry: registry}
}

// load resolves load("<module>", ...) statements. The module is bound under
// its own name, so load("math", "math") makes math.sqrt available.
func (l *loader) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	if m, ok := stdlib[module]; ok {
		return starlark.StringDict{module: m}, nil
	}
	fns, ok := l.registry.Module(module)
	if !ok {
		return nil, fmt.Errorf("module not found: %s", module)
	}

	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	sort.Strings(names)

	members := make(starlark.StringDict, len(fns))
	for _, name := range names {
		members[name] = starlark.NewBuiltin(module+"."+name, builtin(fns[name]))
	}
	return starlark.StringDict{
		module: &starlarkstruct.Module{Name: module, Members: members},
	}, nil
}

// builtin adapts a host function to a Starlark builtin. Host functions take
// keyword arguments only.
func builtin(fn hostfunc.Func) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s: unexpected positional arguments, use keyword arguments", b.Name())
		}

		in := make(map[string]any, len(kwargs))
		for _, kv := range kwargs {
			key, _ := starlark.AsString(kv[0])
			v, err := FromStarlark(kv[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", b.Name(), key, err)
			}
			in[key] = v
		}

		out, err := fn(threadContext(thread), in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return ToStarlark(out)
	}
}
