// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package effectregistry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"framegraph/imgnode"
	"framegraph/timelinedoc"
)

func TestMakeFillReadsSizeAndColor(t *testing.T) {
	r := New()
	p := timelinedoc.NewParams()
	p.Write("size", [2]float64{4, 2})
	p.Write("color", [4]float64{1, 0, 0, 1})

	n, err := r.Make(timelinedoc.Effect{SchemaName: "FillEffect", Params: p}, nil)
	require.NoError(t, err)
	require.Equal(t, imgnode.Fill, n.Variant)
	require.Equal(t, 4, n.Width)
	require.Equal(t, 2, n.Height)
	require.Equal(t, 1.0, n.FillColor[0])
}

func TestMakeUnknownSchemaIsErrUnknownSchema(t *testing.T) {
	r := New()
	_, err := r.Make(timelinedoc.Effect{SchemaName: "NoSuchEffect"}, nil)
	require.True(t, errors.Is(err, ErrUnknownSchema))
}

func TestMakeColorMapFallsBackToPassthroughOnUnknownName(t *testing.T) {
	r := New()
	p := timelinedoc.NewParams()
	p.Write("map_name", "not-a-real-ramp")
	input := &imgnode.Node{Name: "in", Variant: imgnode.Fill}

	n, err := r.Make(timelinedoc.Effect{SchemaName: "ColorMapEffect", Params: p}, []*imgnode.Node{input})
	require.NoError(t, err)
	require.Equal(t, imgnode.Composite, n.Variant)
	require.Equal(t, []*imgnode.Node{input}, n.Inputs)
}

func TestRegisterOverridesBuiltin(t *testing.T) {
	r := New()
	called := false
	r.Register("FillEffect", func(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
		called = true
		return &imgnode.Node{Name: "custom"}, nil
	})

	n, err := r.Make(timelinedoc.Effect{SchemaName: "FillEffect", Params: timelinedoc.NewParams()}, nil)
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, "custom", n.Name)
}

func TestMakeLinearTimeWarpReadsScalar(t *testing.T) {
	r := New()
	p := timelinedoc.NewParams()
	p.Write("time_scalar", 2.0)
	input := &imgnode.Node{Name: "in", Variant: imgnode.Fill}

	n, err := r.Make(timelinedoc.Effect{SchemaName: "LinearTimeWarpEffect", Params: p}, []*imgnode.Node{input})
	require.NoError(t, err)
	require.Equal(t, imgnode.LinearTimeWarp, n.Variant)
	require.Equal(t, 2.0, n.WarpScalar)
}
