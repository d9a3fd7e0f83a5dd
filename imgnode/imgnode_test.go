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

package imgnode

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"framegraph/imgalgebra"
	"framegraph/imgalgebra/refengine"
	"framegraph/mediaio"
	"framegraph/pkg/rlog"
	"framegraph/rtime"
)

func testEnv(t *testing.T) *Env {
	t.Helper()
	logger := rlog.NewMockLogger()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go logger.Start(ctx) //nolint:errcheck

	return &Env{
		Engine: refengine.New(),
		Media:  mediaio.NewReader(),
		Logger: logger,
	}
}

func at(value, rate float64) rtime.Time {
	return rtime.Time{Value: value, Rate: rate}
}

func TestExecFillProducesSizedImage(t *testing.T) {
	n := &Node{Name: "bg", Variant: Fill, Width: 4, Height: 2, FillColor: imgalgebra.Color{1, 0, 0, 1}}
	img := n.Exec(testEnv(t), at(0, 24))
	require.Equal(t, 4, img.Width)
	require.Equal(t, 2, img.Height)
	require.Equal(t, 1.0, img.Data[0])
}

func TestExecUnaryInvertComposesWithInput(t *testing.T) {
	fill := &Node{Name: "bg", Variant: Fill, Width: 1, Height: 1, FillColor: imgalgebra.Color{0.25, 0.5, 0.75, 1}}
	inv := &Node{Name: "inv", Variant: Invert, Inputs: []*Node{fill}}
	img := inv.Exec(testEnv(t), at(0, 24))
	require.InDelta(t, 0.75, img.Data[0], 1e-9)
	require.InDelta(t, 0.5, img.Data[1], 1e-9)
	require.InDelta(t, 0.25, img.Data[2], 1e-9)
}

func TestExecCompositeTwoInputsOverOrder(t *testing.T) {
	fg := &Node{Name: "fg", Variant: Fill, Width: 1, Height: 1, FillColor: imgalgebra.Color{1, 0, 0, 1}}
	bg := &Node{Name: "bg", Variant: Fill, Width: 1, Height: 1, FillColor: imgalgebra.Color{0, 0, 1, 1}}
	comp := &Node{Name: "comp", Variant: Composite, Inputs: []*Node{fg, bg}}
	img := comp.Exec(testEnv(t), at(0, 24))
	require.InDelta(t, 1, img.Data[0], 1e-9) // opaque fg wins
	require.InDelta(t, 0, img.Data[2], 1e-9)
}

func TestExecCompositeSingleInputPremultiplies(t *testing.T) {
	fg := &Node{Name: "fg", Variant: Fill, Width: 1, Height: 1, FillColor: imgalgebra.Color{1, 1, 1, 0.5}}
	comp := &Node{Name: "comp", Variant: Composite, Inputs: []*Node{fg}, CompositePremult: true}
	img := comp.Exec(testEnv(t), at(0, 24))
	require.InDelta(t, 0.5, img.Data[0], 1e-9)
}

func TestExecCompositeNoInputsIsEmpty(t *testing.T) {
	comp := &Node{Name: "comp", Variant: Composite}
	img := comp.Exec(testEnv(t), at(0, 24))
	require.True(t, img.Empty())
}

func TestExecTransitionBlendsByProgress(t *testing.T) {
	a := &Node{Name: "a", Variant: Fill, Width: 1, Height: 1, FillColor: imgalgebra.Color{0, 0, 0, 1}}
	b := &Node{Name: "b", Variant: Fill, Width: 1, Height: 1, FillColor: imgalgebra.Color{1, 1, 1, 1}}
	tr := &Node{
		Name: "tr", Variant: Transition, Inputs: []*Node{a, b},
		TransitionRange: rtime.Range{Start: at(0, 24), Duration: at(10, 24)},
	}
	img := tr.Exec(testEnv(t), at(5, 24))
	require.InDelta(t, 0.5, img.Data[0], 1e-9)
}

func TestExecLinearTimeWarpPassesInputThrough(t *testing.T) {
	// The leaf is a Fill, which ignores time, so this only checks that
	// the warp forwards its input's image; the time rescaling itself is
	// checked by graphbuilder's TestBuildLinearTimeWarpDoublesSourceFrame.
	fill := &Node{Name: "leaf", Variant: Fill, Width: 1, Height: 1, FillColor: imgalgebra.Color{0.1, 0.2, 0.3, 1}}
	warp := &Node{Name: "warp", Variant: LinearTimeWarp, Inputs: []*Node{fill}, WarpScalar: 2}
	img := warp.Exec(testEnv(t), at(3, 24))
	require.False(t, img.Empty())
}

func TestExecReadMissingFileReturnsEmptyAndLogs(t *testing.T) {
	n := &Node{Name: "r", Variant: Read, Path: "/no/such/file.png"}
	img := n.Exec(testEnv(t), at(0, 24))
	require.True(t, img.Empty())
}

func TestGraphIsAcyclicAndTopologicallyOrdered(t *testing.T) {
	fg := &Node{Name: "fg", Variant: Fill, Width: 1, Height: 1}
	bg := &Node{Name: "bg", Variant: Fill, Width: 1, Height: 1}
	comp := &Node{Name: "comp", Variant: Composite, Inputs: []*Node{fg, bg}}

	dot, err := Graph(comp, "frame_0")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dot, "digraph frame_0 {"))
	require.Contains(t, dot, "->")
}

func TestGraphSharedInputEmittedOnce(t *testing.T) {
	shared := &Node{Name: "shared", Variant: Fill, Width: 1, Height: 1}
	a := &Node{Name: "a", Variant: Invert, Inputs: []*Node{shared}}
	b := &Node{Name: "b", Variant: Flip, Inputs: []*Node{shared}}
	comp := &Node{Name: "comp", Variant: Composite, Inputs: []*Node{a, b}}

	dot, err := Graph(comp, "g")
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(dot, `label="shared"`))
}
