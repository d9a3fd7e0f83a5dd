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

package refengine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"framegraph/imgalgebra"
)

func TestFill(t *testing.T) {
	e := New()
	img := e.Fill(4, 4, imgalgebra.Color{1, 0, 0, 1})
	require.Equal(t, 4, img.Width)
	require.Equal(t, []float64{1, 0, 0, 1}, img.Data[0:4])
}

func TestOverOpaqueForeground(t *testing.T) {
	e := New()
	red := e.Fill(2, 2, imgalgebra.Color{1, 0, 0, 1})
	blue := e.Fill(2, 2, imgalgebra.Color{0, 0, 1, 1})
	out := e.Over(red, blue)
	require.Equal(t, []float64{1, 0, 0, 1}, out.Data[0:4])
}

func TestOverHalfAlpha(t *testing.T) {
	e := New()
	green := e.Fill(1, 1, imgalgebra.Color{0, 0.5, 0, 0.5}) // premultiplied 50% green
	red := e.Fill(1, 1, imgalgebra.Color{1, 0, 0, 1})
	out := e.Over(green, red)
	require.InDelta(t, 0.5, out.Data[0], 1e-9)
	require.InDelta(t, 0.5, out.Data[1], 1e-9)
	require.InDelta(t, 0, out.Data[2], 1e-9)
	require.InDelta(t, 1, out.Data[3], 1e-9)
}

func TestBlendMonotonic(t *testing.T) {
	e := New()
	a := e.Fill(1, 1, imgalgebra.Color{1, 1, 1, 1})
	b := e.Fill(1, 1, imgalgebra.Color{0, 0, 0, 1})
	require.Equal(t, a.Data, e.Blend(a, b, 0).Data)
	require.Equal(t, b.Data, e.Blend(a, b, 1).Data)
	mid := e.Blend(a, b, 0.5)
	require.InDelta(t, 0.5, mid.Data[0], 1e-9)
}

func TestPremultUnpremultIdentity(t *testing.T) {
	e := New()
	img := e.Fill(1, 1, imgalgebra.Color{0.8, 0.4, 0.2, 0.5})
	round := e.Unpremult(e.Premult(img))
	for i := 0; i < 4; i++ {
		require.InDelta(t, img.Data[i], round.Data[i], 1e-9)
	}
}

func TestCheckersAlternates(t *testing.T) {
	e := New()
	img := e.Checkers(4, 1, 1, imgalgebra.Color{1, 0, 0, 1}, imgalgebra.Color{0, 1, 0, 1})
	require.Equal(t, []float64{1, 0, 0, 1}, img.Data[0:4])
	require.Equal(t, []float64{0, 1, 0, 1}, img.Data[4:8])
}

func TestRotate90ExactSwapsDimensions(t *testing.T) {
	e := New()
	img := e.Fill(4, 2, imgalgebra.Color{1, 0, 0, 1})
	out := e.Rotate(img, math.Pi/2, imgalgebra.FilterBox, 0)
	require.Equal(t, 2, out.Width)
	require.Equal(t, 4, out.Height)
}

func TestResizeChangesDimensions(t *testing.T) {
	e := New()
	img := e.Fill(50, 100, imgalgebra.Color{0, 0, 1, 1})
	out := e.Resize(img, 100, 50, imgalgebra.FilterTriangle, 0)
	require.Equal(t, 100, out.Width)
	require.Equal(t, 50, out.Height)
}
