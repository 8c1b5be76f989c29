package ioconfig

import (
	"testing"

	"github.com/stretchr/testify/require"

	"machinecore/pkg/resource"
)

var (
	coal  = resource.Item("coal")
	water = resource.Fluid("water")
)

func TestZeroConfigDisabled(t *testing.T) {
	c := New()
	for _, f := range Faces {
		require.False(t, c.CanAccept(f, coal, FlowInput))
		require.False(t, c.CanAccept(f, coal, FlowOutput))
	}
}

func TestOutputFaceRejectsInput(t *testing.T) {
	c := New()
	require.NoError(t, c.Configure(Back, Output, nil))
	for _, k := range []resource.Key{coal, water, resource.Energy()} {
		require.False(t, c.CanAccept(Back, k, FlowInput))
		require.True(t, c.CanAccept(Back, k, FlowOutput))
	}
}

func TestBothAndFilter(t *testing.T) {
	c := New()
	require.NoError(t, c.Configure(Top, Both, resource.AllowOnly(coal)))
	require.True(t, c.CanAccept(Top, coal, FlowInput))
	require.True(t, c.CanAccept(Top, coal, FlowOutput))
	require.False(t, c.CanAccept(Top, water, FlowInput))
	require.False(t, c.CanAccept(Top, resource.Key{}, FlowInput))
}

func TestCategoryRestriction(t *testing.T) {
	c := New()
	require.NoError(t, c.ConfigureFace(Left, FaceConfig{Mode: Input, Category: resource.CategoryFluid}))
	require.True(t, c.CanAccept(Left, water, FlowInput))
	require.False(t, c.CanAccept(Left, coal, FlowInput))

	// Configure keeps an existing category restriction.
	require.NoError(t, c.Configure(Left, Both, nil))
	require.Equal(t, resource.CategoryFluid, c.Get(Left).Category)
	require.False(t, c.CanAccept(Left, coal, FlowOutput))

	require.NoError(t, c.Configure(Left, Disabled, nil))
	require.False(t, c.Get(Left).Active())
	require.NoError(t, c.Configure(Left, Input, nil))
	require.Equal(t, resource.CategoryAny, c.Get(Left).Category)
}

func TestConfigureValidation(t *testing.T) {
	c := New()
	require.Error(t, c.Configure(Face(9), Input, nil))
	require.Error(t, c.ConfigureFace(Front, FaceConfig{Mode: Mode(7), Category: resource.CategoryAny}))
	require.Error(t, c.ConfigureFace(Front, FaceConfig{Mode: Input, Category: resource.Category(9)}))
	require.Zero(t, c.Revision())
	require.False(t, c.CanAccept(Face(9), coal, FlowInput))
}

func TestConfigCopiesFilter(t *testing.T) {
	c := New()
	f := resource.AllowOnly(coal)
	require.NoError(t, c.Configure(Front, Input, f))
	f.Keys[0] = water
	require.True(t, c.CanAccept(Front, coal, FlowInput))

	got := c.Get(Front)
	got.Filter.Keys[0] = water
	require.True(t, c.CanAccept(Front, coal, FlowInput))
}

func TestRevisionAndReset(t *testing.T) {
	c := New()
	require.NoError(t, c.Configure(Front, Input, nil))
	require.NoError(t, c.Configure(Right, Output, nil))
	require.Equal(t, uint64(2), c.Revision())
	require.Equal(t, []Face{Front}, c.FacesFor(coal, FlowInput))
	c.Reset()
	require.Equal(t, uint64(3), c.Revision())
	require.Empty(t, c.FacesFor(coal, FlowOutput))
	require.Equal(t, FaceConfig{}, c.Snapshot()[Right])
}

func TestModeAllows(t *testing.T) {
	require.False(t, Disabled.Allows(FlowInput))
	require.True(t, Input.Allows(FlowInput))
	require.False(t, Input.Allows(FlowOutput))
	require.True(t, Both.Allows(FlowOutput))
	require.False(t, Both.Allows(Flow(0)))
	for _, m := range []Mode{Disabled, Input, Output, Both} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, parsed)
	}
	_, err := ParseMode("sideways")
	require.Error(t, err)
}
