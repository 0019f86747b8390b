package engine

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/scriptexec/hostfunc"
	"github.com/caffeineduck/scriptexec/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustValidate(t *testing.T, src string) *validate.Program {
	t.Helper()
	prog, err := validate.New().Validate("<string>", src)
	require.NoError(t, err)
	return prog
}

func TestRunScriptCapturesPrint(t *testing.T) {
	out, err := New(nil).RunScript(context.Background(), mustValidate(t, "print('Hello, World!')"))
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!\n", out)
}

func TestRunScriptMultiplePrints(t *testing.T) {
	src := `
def square(x):
    return x * x

for i in range(3):
    print(i, square(i))
`
	out, err := New(nil).RunScript(context.Background(), mustValidate(t, src))
	require.NoError(t, err)
	assert.Equal(t, "0 0\n1 1\n2 4\n", out)
}

func TestRunScriptNoOutput(t *testing.T) {
	out, err := New(nil).RunScript(context.Background(), mustValidate(t, "def test(): pass"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunScriptFailureDiscardsOutput(t *testing.T) {
	src := "print('before')\nx = 1 // 0"
	out, err := New(nil).RunScript(context.Background(), mustValidate(t, src))

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestRunScriptUndefinedName(t *testing.T) {
	_, err := New(nil).RunScript(context.Background(), mustValidate(t, "print(os)"))

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, err.Error(), "undefined: os")
}

func TestRunScriptFreshEnvironment(t *testing.T) {
	eng := New(nil)
	_, err := eng.RunScript(context.Background(), mustValidate(t, "leaked = 1"))
	require.NoError(t, err)

	_, err = eng.RunScript(context.Background(), mustValidate(t, "print(leaked)"))
	assert.Error(t, err)
}

func TestRunScriptLoadsStdlib(t *testing.T) {
	src := `load("math", "math")
load("json", "json")
print(math.sqrt(16))
print(json.encode({"a": 1}))`
	out, err := New(nil).RunScript(context.Background(), mustValidate(t, src))
	require.NoError(t, err)
	assert.Equal(t, "4.0\n{\"a\":1}\n", out)
}

func TestRunScriptUnknownModule(t *testing.T) {
	_, err := New(nil).RunScript(context.Background(), mustValidate(t, `load("socket", "socket")`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module not found: socket")
}

func TestRunScriptHostModule(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("greet", "hello", func(ctx context.Context, args map[string]any) (any, error) {
		return "Hello, " + args["name"].(string) + "!", nil
	})

	src := `load("greet", "greet")
print(greet.hello(name = "World"))`
	out, err := New(registry).RunScript(context.Background(), mustValidate(t, src))
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!\n", out)
}

func TestRunScriptHostModuleRejectsPositional(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("greet", "hello", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})

	src := `load("greet", "greet")
greet.hello("World")`
	_, err := New(registry).RunScript(context.Background(), mustValidate(t, src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use keyword arguments")
}

func TestRunScriptKVIsPerExecution(t *testing.T) {
	eng := New(nil, WithKV())
	src := `load("kv", "kv")
print(kv.get(key = "n", default = "unset"))
kv.set(key = "n", value = "set")
print(kv.get(key = "n"))`

	for i := 0; i < 2; i++ {
		out, err := eng.RunScript(context.Background(), mustValidate(t, src))
		require.NoError(t, err)
		assert.Equal(t, "unset\nset\n", out)
	}
}

func TestRunScriptKVDisabledByDefault(t *testing.T) {
	_, err := New(nil).RunScript(context.Background(), mustValidate(t, `load("kv", "kv")`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module not found: kv")
}

func TestRunScriptTimeout(t *testing.T) {
	eng := New(nil, WithTimeout(50*time.Millisecond))
	src := "while True:\n    pass"

	start := time.Now()
	_, err := eng.RunScript(context.Background(), mustValidate(t, src))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "timeout after 50ms"), err.Error())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunScriptContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := New(nil).RunScript(ctx, mustValidate(t, "while True:\n    pass"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancel")
}

func TestRunScriptMaxSteps(t *testing.T) {
	eng := New(nil, WithMaxSteps(1000))
	_, err := eng.RunScript(context.Background(), mustValidate(t, "while True:\n    pass"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many steps")
}

func TestCallEntry(t *testing.T) {
	prog := mustValidate(t, "def custom(param): return param * 2")

	v, err := New(nil).CallEntry(context.Background(), prog, []any{int64(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
}

func TestCallEntryArityMismatch(t *testing.T) {
	prog := mustValidate(t, "def custom(param): return param * 2")

	_, err := New(nil).CallEntry(context.Background(), prog, []any{int64(5), int64(10)})

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	var arityErr *ArityError
	assert.True(t, errors.As(err, &arityErr))
	assert.Contains(t, err.Error(), "accepts 1 positional argument (2 given)")
}

func TestCallEntryRuntimeFailureIsNotArity(t *testing.T) {
	prog := mustValidate(t, "def custom(a, b=1): return a // 0")

	_, err := New(nil).CallEntry(context.Background(), prog, []any{int64(5)})

	require.Error(t, err)
	var arityErr *ArityError
	assert.False(t, errors.As(err, &arityErr))
	assert.Contains(t, err.Error(), "division by zero")
}

func TestCallEntryTooFewParameters(t *testing.T) {
	prog := mustValidate(t, "def custom(a, b): return a + b")

	_, err := New(nil).CallEntry(context.Background(), prog, []any{int64(5)})

	var arityErr *ArityError
	assert.True(t, errors.As(err, &arityErr))
	assert.Contains(t, err.Error(), "missing")
}

func TestCallEntryMissing(t *testing.T) {
	prog := mustValidate(t, "def other(x): return x")

	_, err := New(nil).CallEntry(context.Background(), prog, []any{1})

	var undef *UndefinedEntryPointError
	require.True(t, errors.As(err, &undef))
	assert.Equal(t, "'custom'", err.Error())
}

func TestCallEntryNestedDefIsNotEntry(t *testing.T) {
	src := `
def outer():
    def custom(x):
        return x
    return custom
`
	_, err := New(nil).CallEntry(context.Background(), mustValidate(t, src), nil)

	var undef *UndefinedEntryPointError
	assert.True(t, errors.As(err, &undef))
}

func TestCallEntryStructuredValues(t *testing.T) {
	src := `
def custom(items, opts):
    return {"total": sum(items), "label": opts["label"], "pair": (1, None)}
`
	v, err := New(nil).CallEntry(context.Background(), mustValidate(t, src), []any{
		[]any{int64(1), int64(2), int64(3)},
		map[string]any{"label": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"total": int64(6),
		"label": "x",
		"pair":  []any{int64(1), nil},
	}, v)
}

func TestCallEntryBigInt(t *testing.T) {
	v, err := New(nil).CallEntry(context.Background(), mustValidate(t, "def custom(): return 1 << 80"), nil)
	require.NoError(t, err)

	want := new(big.Int).Lsh(big.NewInt(1), 80)
	assert.Equal(t, 0, want.Cmp(v.(*big.Int)))
}

func TestCallEntryRuntimeError(t *testing.T) {
	src := "def custom(x):\n    fail('bad input: %s' % x)"
	_, err := New(nil).CallEntry(context.Background(), mustValidate(t, src), []any{"z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input: z")
}

func TestHasEntryPoint(t *testing.T) {
	assert.True(t, HasEntryPoint(mustValidate(t, "def custom(): pass").File))
	assert.False(t, HasEntryPoint(mustValidate(t, "custom = 1").File))
}
