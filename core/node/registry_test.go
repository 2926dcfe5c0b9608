package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndNew(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("stub", func() Node {
		return &stubNode{spec: singleOutputSpec(), process: func(context.Context, map[string]any, map[string]any) (any, error) { return "x", nil }}
	}))

	instance, err := registry.New("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", instance.Spec().Name)
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	factory := func() Node { return &stubNode{spec: singleOutputSpec()} }

	require.NoError(t, registry.Register("stub", factory))
	assert.Error(t, registry.Register("stub", factory))
}

func TestRegistryUnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.New("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownNodeType)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestRegistryRejectsInvalidSpec(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("bad", func() Node {
		return &stubNode{spec: &Spec{Name: ""}}
	}))

	_, err := registry.New("bad")
	assert.Error(t, err)
}

func TestRegistryTypesSorted(t *testing.T) {
	registry := NewRegistry()
	factory := func() Node { return &stubNode{spec: singleOutputSpec()} }
	require.NoError(t, registry.Register("zeta", factory))
	require.NoError(t, registry.Register("alpha", factory))

	assert.Equal(t, []string{"alpha", "zeta"}, registry.Types())
}

func TestSpecValidateDuplicateNames(t *testing.T) {
	spec := singleOutputSpec()
	spec.Inputs = append(spec.Inputs, InputSpec{Name: "a"})
	assert.Error(t, spec.Validate())
}

func TestHasOutputs(t *testing.T) {
	spec := multiOutputSpec()
	data := NewData()

	assert.False(t, data.HasOutputs(spec))

	data.Outputs["left"] = "l"
	assert.False(t, data.HasOutputs(spec))

	data.Outputs["right"] = "r"
	assert.True(t, data.HasOutputs(spec))
}
