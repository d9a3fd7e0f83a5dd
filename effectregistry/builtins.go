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
	"math"

	"framegraph/imgalgebra"
	"framegraph/imgalgebra/colormap"
	"framegraph/imgnode"
	"framegraph/timelinedoc"
)

// registerBuiltins wires every schema of §4.4's table to an imgnode
// factory. Parameter names match the table's column exactly.
func registerBuiltins(r *Registry) {
	r.Register("FillEffect", makeFill)
	r.Register("CheckersEffect", makeCheckers)
	r.Register("NoiseEffect", makeNoise)
	r.Register("TextEffect", makeText)
	r.Register("ColorMapEffect", makeColorMap)
	r.Register("PremultEffect", unary(imgnode.Premult))
	r.Register("UnpremultEffect", unary(imgnode.Unpremult))
	r.Register("InvertEffect", unary(imgnode.Invert))
	r.Register("FlipEffect", unary(imgnode.Flip))
	r.Register("FlopEffect", unary(imgnode.Flop))
	r.Register("PowEffect", makePow)
	r.Register("SaturateEffect", makeSaturate)
	r.Register("ResizeEffect", makeResize)
	r.Register("RotateEffect", makeRotate)
	r.Register("LinearTimeWarpEffect", makeLinearTimeWarp)
}

func readSize(p *timelinedoc.Params) (w, h int) {
	var size [2]float64
	p.Read("size", &size)
	return int(size[0]), int(size[1])
}

func readColor(p *timelinedoc.Params, key string) imgalgebra.Color {
	var c [4]float64
	p.Read(key, &c)
	return imgalgebra.Color(c)
}

func makeFill(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	w, h := readSize(p)
	return &imgnode.Node{
		Name: "FillEffect", Variant: imgnode.Fill,
		Width: w, Height: h, FillColor: readColor(p, "color"),
	}, nil
}

func makeCheckers(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	w, h := readSize(p)
	return &imgnode.Node{
		Name: "CheckersEffect", Variant: imgnode.Checkers,
		Width: w, Height: h,
		CheckerSize:   p.ReadIntDefault("checker_size", 8),
		CheckerColor1: readColor(p, "color1"),
		CheckerColor2: readColor(p, "color2"),
	}, nil
}

// noiseKindFromName maps the original's noise type names (SPEC_FULL
// "SUPPLEMENTED FEATURES" #1) onto imgalgebra.NoiseType.
func noiseKindFromName(name string) imgalgebra.NoiseType {
	if name == "uniform" {
		return imgalgebra.NoiseUniform
	}
	return imgalgebra.NoiseGaussian
}

func makeNoise(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	w, h := readSize(p)
	return &imgnode.Node{
		Name: "NoiseEffect", Variant: imgnode.Noise,
		Width: w, Height: h,
		NoiseKind: noiseKindFromName(p.ReadStringDefault("type", "gaussian")),
		NoiseA:    p.ReadFloatDefault("a", 0),
		NoiseB:    p.ReadFloatDefault("b", 1),
		NoiseMono: p.ReadBoolDefault("mono", false),
		NoiseSeed: int64(p.ReadIntDefault("seed", 0)),
	}, nil
}

func makeText(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	w, h := readSize(p)
	var pos [2]float64
	p.Read("pos", &pos)
	return &imgnode.Node{
		Name: "TextEffect", Variant: imgnode.Text,
		Width: w, Height: h,
		TextPos:      pos,
		TextString:   p.ReadStringDefault("text", ""),
		TextFontSize: p.ReadFloatDefault("font_size", 12),
		TextFontName: p.ReadStringDefault("font_name", ""),
		TextColor:    readColor(p, "color"),
	}, nil
}

func makeColorMap(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	name := p.ReadStringDefault("map_name", "grayscale")
	ramp, ok := colormap.Lookup(name)
	if !ok {
		// Unknown map name (SPEC_FULL #2): fall back to identity by
		// emitting a pass-through node rather than failing the effect.
		// No error is returned or logged.
		return passthroughNode("ColorMapEffect", inputs), nil
	}
	return &imgnode.Node{
		Name: "ColorMapEffect", Variant: imgnode.ColorMap,
		Inputs: inputs, ColorMapName: name, ColorMapRamp: ramp,
	}, nil
}

// passthroughNode wraps inputs[0] in a single-input Composite, which
// execComposite evaluates as an unchanged pass-through (§4.5
// Composite: "with one input return that input unchanged").
func passthroughNode(name string, inputs []*imgnode.Node) *imgnode.Node {
	if len(inputs) == 0 {
		return &imgnode.Node{Name: name, Variant: imgnode.Composite}
	}
	return &imgnode.Node{Name: name, Variant: imgnode.Composite, Inputs: inputs[:1]}
}

func unary(variant imgnode.Variant) Factory {
	return func(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
		return &imgnode.Node{Name: variant.String() + "Effect", Variant: variant, Inputs: inputs}, nil
	}
}

func makePow(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	return &imgnode.Node{
		Name: "PowEffect", Variant: imgnode.Pow, Inputs: inputs,
		ScalarValue: p.ReadFloatDefault("value", 1),
	}, nil
}

func makeSaturate(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	return &imgnode.Node{
		Name: "SaturateEffect", Variant: imgnode.Saturate, Inputs: inputs,
		ScalarValue: p.ReadFloatDefault("value", 1),
	}, nil
}

// filterKindFromName maps the original's filterName strings
// (SPEC_FULL #3) onto the fixed imgalgebra.FilterKind enum.
func filterKindFromName(name string) imgalgebra.FilterKind {
	switch name {
	case "triangle":
		return imgalgebra.FilterTriangle
	case "mitchell":
		return imgalgebra.FilterMitchell
	default:
		return imgalgebra.FilterBox
	}
}

func makeResize(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	w, h := readSize(p)
	return &imgnode.Node{
		Name: "ResizeEffect", Variant: imgnode.Resize, Inputs: inputs,
		ResizeWidth: w, ResizeHeight: h,
		Filter:      filterKindFromName(p.ReadStringDefault("filter_name", "")),
		FilterWidth: p.ReadFloatDefault("filter_width", 1),
	}, nil
}

func makeRotate(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	degrees := p.ReadFloatDefault("angle", 0)
	return &imgnode.Node{
		Name: "RotateEffect", Variant: imgnode.Rotate, Inputs: inputs,
		RotateAngleRadians: degrees * math.Pi / 180,
		Filter:             filterKindFromName(p.ReadStringDefault("filter_name", "")),
		FilterWidth:        p.ReadFloatDefault("filter_width", 1),
	}, nil
}

func makeLinearTimeWarp(p *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
	return &imgnode.Node{
		Name: "LinearTimeWarpEffect", Variant: imgnode.LinearTimeWarp, Inputs: inputs,
		WarpScalar: p.ReadFloatDefault("time_scalar", 1),
	}, nil
}
