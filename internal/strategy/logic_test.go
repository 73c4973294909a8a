package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"main/internal/errors"
)

func TestDeclarationValidate(t *testing.T) {
	get := func() any { return 0 }
	set := func(any) bool { return true }

	tests := []struct {
		name string
		decl Declaration
		ok   bool
	}{
		{
			name: "valid",
			decl: Declaration{
				Class:      "C",
				Parameters: []Parameter{{Name: "p", Get: get, Set: set}},
				Variables:  []Variable{{Name: "v", Get: get}},
			},
			ok: true,
		},
		{
			name: "empty class",
			decl: Declaration{},
		},
		{
			name: "empty parameter name",
			decl: Declaration{Class: "C", Parameters: []Parameter{{Get: get, Set: set}}},
		},
		{
			name: "duplicate parameter",
			decl: Declaration{Class: "C", Parameters: []Parameter{
				{Name: "p", Get: get, Set: set},
				{Name: "p", Get: get, Set: set},
			}},
		},
		{
			name: "parameter without setter",
			decl: Declaration{Class: "C", Parameters: []Parameter{{Name: "p", Get: get}}},
		},
		{
			name: "variable shadowing parameter",
			decl: Declaration{
				Class:      "C",
				Parameters: []Parameter{{Name: "x", Get: get, Set: set}},
				Variables:  []Variable{{Name: "x", Get: get}},
			},
		},
		{
			name: "variable without getter",
			decl: Declaration{Class: "C", Variables: []Variable{{Name: "v"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decl.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsConfig(err), "want config error, got %v", err)
		})
	}
}

func TestClassParameters(t *testing.T) {
	logic := &declaredLogic{window: 99}
	params := ClassParameters(logic)
	assert.Equal(t, map[string]any{"window": int64(20)}, params,
		"defaults come from the declaration, not the instance state")
}

func TestParamCoercion(t *testing.T) {
	var i int64
	p := IntParam("n", 1, &i)
	assert.True(t, p.Set(float64(7)), "whole float coerces")
	assert.Equal(t, int64(7), i)
	assert.False(t, p.Set(7.5), "fractional float rejected")
	assert.False(t, p.Set("7"))
	assert.Equal(t, int64(7), i)

	var f float64
	fp := FloatParam("f", 0, &f)
	assert.True(t, fp.Set(3))
	assert.Equal(t, 3.0, f)
	assert.True(t, fp.Set(2.5))
	assert.Equal(t, 2.5, f)

	var b bool
	bp := BoolParam("b", false, &b)
	assert.True(t, bp.Set(true))
	assert.False(t, bp.Set(1))
	assert.True(t, b)
}
