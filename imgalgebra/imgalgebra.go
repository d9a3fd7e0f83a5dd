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

// Package imgalgebra declares the external image-algebra collaborator the
// core calls into (resize, rotate, over, fill, noise, text, color-map,
// channel-swizzle). The core never materializes pixels itself; it is
// written entirely against the Engine interface so any image-algebra
// library can be substituted. Package imgalgebra/refengine ships one
// concrete implementation used by the core's own tests.
package imgalgebra

// Color is an RGBA color in [0,1], not premultiplied unless noted.
type Color [4]float64

// Rect is an image region of interest, in pixels, [X0,X1)x[Y0,Y1).
type Rect struct {
	X0, Y0, X1, Y1 int
}

// Image is the abstract raster the core passes between nodes. Channels is
// always 4 (RGB promoted to RGBA on read, per §4.1) and Data is row-major
// interleaved RGBA in [0,1].
type Image struct {
	Width, Height int
	Data          []float64 // len == Width*Height*4
	ROI           Rect
}

// Empty reports whether the image carries no pixels; downstream operators
// must propagate emptiness by returning empty (§4.5 Failure).
func (img Image) Empty() bool {
	return img.Width == 0 || img.Height == 0 || len(img.Data) == 0
}

// NoiseType selects a noise field generator.
type NoiseType int

// Noise field kinds.
const (
	NoiseGaussian NoiseType = iota
	NoiseUniform
)

// FilterKind is a fixed, small resampling-kernel enum, following the
// original implementation's filterName/filterWidth pair (SPEC_FULL
// supplemented feature #3).
type FilterKind int

// Resampling kernels.
const (
	FilterBox FilterKind = iota
	FilterTriangle
	FilterMitchell
)

// Ramp is a named color-map lookup table, sampled at t in [0,1].
type Ramp []Color

// Sample linearly interpolates the ramp at t in [0,1].
func (r Ramp) Sample(t float64) Color {
	if len(r) == 0 {
		return Color{0, 0, 0, 0}
	}
	if t <= 0 {
		return r[0]
	}
	if t >= 1 {
		return r[len(r)-1]
	}
	pos := t * float64(len(r)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := r[i], r[i+1]
	var out Color
	for c := 0; c < 4; c++ {
		out[c] = a[c]*(1-frac) + b[c]*frac
	}
	return out
}

// Engine is the image-algebra collaborator. Every Image-Node unary/binary
// filter variant (§4.5) is a thin call into one of these methods.
type Engine interface {
	Fill(w, h int, color Color) Image
	Checkers(w, h, checkerSize int, c1, c2 Color) Image
	Noise(w, h int, kind NoiseType, a, b float64, mono bool, seed int64) Image
	Gradient(w, h int, c1, c2 Color) Image
	Text(w, h int, pos [2]float64, text string, fontSize float64, fontName string, color Color) Image

	ColorMap(img Image, ramp Ramp) Image
	Premult(img Image) Image
	Unpremult(img Image) Image
	Invert(img Image) Image
	Pow(img Image, value float64) Image
	Saturate(img Image, value float64) Image
	Flip(img Image) Image
	Flop(img Image) Image
	Rotate(img Image, angleRadians float64, filter FilterKind, filterWidth float64) Image
	Resize(img Image, w, h int, filter FilterKind, filterWidth float64) Image

	// Over composites fg on top of bg, Porter-Duff over, fg alpha drives
	// the blend (§4.5 Composite).
	Over(fg, bg Image) Image
	// Blend computes a*(1-v) + b*v componentwise (§4.5 Transition).
	Blend(a, b Image, v float64) Image
}
