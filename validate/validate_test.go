package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsPlainScript(t *testing.T) {
	prog, err := New().Validate("<string>", "print('Hello, World!')")
	require.NoError(t, err)
	assert.Equal(t, "print('Hello, World!')", prog.Source)
	assert.NotNil(t, prog.File)
}

func TestValidateRejectsReceiverCall(t *testing.T) {
	_, err := New().Validate("<string>", "os.system('rm -rf /')")

	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, DenylistedFunction, rej.Reason)
	assert.Equal(t, "os.system", rej.Name)
	assert.Equal(t, "Dangerous function call detected", err.Error())
}

func TestValidateRejectsNestedCall(t *testing.T) {
	src := `
def run():
    if True:
        return [subprocess.call(["ls"])]
`
	_, err := New().Validate("<string>", src)

	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "subprocess.call", rej.Name)
}

func TestValidateAcceptsWhileLoop(t *testing.T) {
	src := `
i = 0
while i < 3:
    i += 1
print(i)
`
	prog, err := New().Validate("<string>", src)
	require.NoError(t, err)
	assert.Equal(t, src, prog.Source)
}

func TestValidateRejectsCallInsideWhile(t *testing.T) {
	src := `
n = 0
while n < 1:
    n += 1
    os.system("ls")
`
	_, err := New().Validate("<string>", src)

	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "os.system", rej.Name)
}

func TestValidateRejectsCallInWhileCondition(t *testing.T) {
	_, err := New().Validate("<string>", "while subprocess.call([\"true\"]) == 0:\n    break\n")

	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "subprocess.call", rej.Name)
}

func TestValidateRejectsDeniedLoad(t *testing.T) {
	_, err := New().Validate("<string>", `load("subprocess", "call")`)

	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, DenylistedModule, rej.Reason)
	assert.Equal(t, "Dangerous module call detected", err.Error())
}

func TestValidateAllowsOtherLoads(t *testing.T) {
	_, err := New().Validate("<string>", `load("math", "math")`+"\nprint(math.sqrt(4))")
	assert.NoError(t, err)
}

func TestValidateFirstMatchWins(t *testing.T) {
	src := "os.system('a')\nload(\"os\", \"x\")"
	_, err := New().Validate("<string>", src)

	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, DenylistedFunction, rej.Reason)
}

func TestValidateCustomMessages(t *testing.T) {
	v := New(WithFunctionMessage("no calls"), WithModuleMessage("no modules"))

	_, err := v.Validate("<string>", "os.system('x')")
	assert.EqualError(t, err, "no calls")

	_, err = v.Validate("<string>", `load("os", "system")`)
	assert.EqualError(t, err, "no modules")
}

func TestValidateEmptyMessageKeepsDefault(t *testing.T) {
	_, err := New(WithFunctionMessage("")).Validate("<string>", "os.system('x')")
	assert.EqualError(t, err, DefaultFunctionMessage)
}

func TestValidateSyntaxError(t *testing.T) {
	_, err := New().Validate("<string>", "def (:")

	var syn *SyntaxError
	require.True(t, errors.As(err, &syn))
	assert.NotEmpty(t, syn.Error())
}

// Aliasing is a known gap of a syntactic check: the forbidden receiver is
// reached through another name, which the validator does not resolve.
func TestValidateDoesNotResolveAliases(t *testing.T) {
	src := "sys = os\nsys.system('x')"
	_, err := New().Validate("<string>", src)
	assert.NoError(t, err)
}

func TestValidateIsIdempotent(t *testing.T) {
	v := New()
	for _, src := range []string{"print(1)", "os.system('x')", `load("os", "a")`} {
		_, first := v.Validate("<string>", src)
		_, second := v.Validate("<string>", src)
		assert.Equal(t, first == nil, second == nil, src)
		if first != nil {
			assert.Equal(t, first.Error(), second.Error(), src)
		}
	}
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "denylisted_function", DenylistedFunction.String())
	assert.Equal(t, "denylisted_module", DenylistedModule.String())
	assert.Equal(t, "unknown", Reason(0).String())
}
