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

// Package imgnode implements the image node: a tagged-variant DAG
// value with inputs, a name, a time offset, depth-first execution
// (§4.5) and Graphviz emission.
package imgnode

import (
	"framegraph/imgalgebra"
	"framegraph/mediaio"
	"framegraph/pluginhost"
	"framegraph/rtime"
)

// Variant is the fixed set of node kinds (§3).
type Variant int

// Node variants, per §3.
const (
	Read Variant = iota
	SequenceRead
	Fill
	Checkers
	Noise
	Gradient
	Text
	ColorMap
	Premult
	Unpremult
	Invert
	Pow
	Saturate
	Flip
	Flop
	Rotate
	Resize
	Composite
	Transition
	LinearTimeWarp
	HostEffect
)

// String names the variant, used as the metrics label and in the
// built-in effect node names.
func (v Variant) String() string {
	names := [...]string{
		"Read", "SequenceRead", "Fill", "Checkers", "Noise", "Gradient", "Text",
		"ColorMap", "Premult", "Unpremult", "Invert", "Pow", "Saturate", "Flip",
		"Flop", "Rotate", "Resize", "Composite", "Transition", "LinearTimeWarp",
		"HostEffect",
	}
	if int(v) < 0 || int(v) >= len(names) {
		return "Unknown"
	}
	return names[v]
}

// Node is a value in the per-frame image DAG (§3 Image node). A Node
// may be an input to several parents (shared ownership); the builder
// never re-enters a closed subtree so cycles are impossible by
// construction (§9).
type Node struct {
	Name       string
	Variant    Variant
	Inputs     []*Node
	TimeOffset rtime.Time // Invalid() acts as identity (§3).

	// Read / SequenceRead
	Path        string
	SequenceRef mediaio.SequenceRef
	MemoryData  []byte // set when the leaf is a Memory media reference

	// Fill / Checkers / Noise / Gradient / Text: synthesis size.
	Width, Height int

	FillColor imgalgebra.Color

	CheckerSize        int
	CheckerColor1      imgalgebra.Color
	CheckerColor2      imgalgebra.Color

	NoiseKind imgalgebra.NoiseType
	NoiseA    float64
	NoiseB    float64
	NoiseMono bool
	NoiseSeed int64

	GradientColor1 imgalgebra.Color
	GradientColor2 imgalgebra.Color

	TextPos      [2]float64
	TextString   string
	TextFontSize float64
	TextFontName string
	TextColor    imgalgebra.Color

	// ColorMap
	ColorMapRamp imgalgebra.Ramp
	ColorMapName string

	// Pow / Saturate
	ScalarValue float64

	// Rotate / Resize
	RotateAngleRadians float64
	ResizeWidth        int
	ResizeHeight       int
	Filter             imgalgebra.FilterKind
	FilterWidth        float64

	// Composite
	CompositePremult bool

	// Transition
	TransitionRange rtime.Range

	// LinearTimeWarp
	WarpScalar float64

	// HostEffect
	HostHost     *pluginhost.Host
	HostInstance *pluginhost.Instance

	label string // overrides the default Name label, if set
}

// SetLabel overrides the node's Graphviz label (default getLabel() ==
// Name, per §4.5 Graph emission).
func (n *Node) SetLabel(label string) { n.label = label }

// Label returns the node's display label.
func (n *Node) Label() string {
	if n.label != "" {
		return n.label
	}
	return n.Name
}
