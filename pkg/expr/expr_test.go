package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/expr"
)

type elephant struct {
	Name string
	Age  int
}

func TestEval_MemberComparison(t *testing.T) {
	env := expr.MapEnv{"elephant": elephant{Name: "Zaboya", Age: 30}}

	ok, err := expr.Eval("elephant.age > 20", env)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = expr.Eval("elephant.age > 20 && elephant.name == 'Zaboya'", env)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = expr.Eval("!(elephant.age <= 20)", env)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_MissingBinding(t *testing.T) {
	_, err := expr.Eval("elephant.age > 20", expr.MapEnv{})
	assert.Error(t, err)
}

func TestEval_BooleanLiteralsAndOr(t *testing.T) {
	ok, err := expr.Eval("true || false", expr.MapEnv{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = expr.Eval("true && false", expr.MapEnv{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEval_MapEnvMemberAccess(t *testing.T) {
	env := expr.MapEnv{"zoo": map[string]any{"open": true}}
	ok, err := expr.Eval("zoo.open", env)
	require.NoError(t, err)
	assert.True(t, ok)
}
