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

// Package refengine is the default imgalgebra.Engine: a small, correct,
// non-accelerated implementation good enough to drive the core's own
// tests and a CLI-less batch render. Resize and non-axis-aligned Rotate
// are backed by golang.org/x/image/draw; everything else is plain Go
// over the abstract float RGBA buffer.
package refengine

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"framegraph/imgalgebra"
)

// Engine is the reference imgalgebra.Engine implementation.
type Engine struct{}

// New returns a ready Engine.
func New() *Engine { return &Engine{} }

func newImage(w, h int) imgalgebra.Image {
	return imgalgebra.Image{
		Width:  w,
		Height: h,
		Data:   make([]float64, w*h*4),
		ROI:    imgalgebra.Rect{X0: 0, Y0: 0, X1: w, Y1: h},
	}
}

func (e *Engine) Fill(w, h int, c imgalgebra.Color) imgalgebra.Image {
	img := newImage(w, h)
	for i := 0; i < w*h; i++ {
		copy(img.Data[i*4:i*4+4], c[:])
	}
	return img
}

func (e *Engine) Checkers(w, h, checkerSize int, c1, c2 imgalgebra.Color) imgalgebra.Image {
	img := newImage(w, h)
	if checkerSize <= 0 {
		checkerSize = 1
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := c1
			if ((x/checkerSize)+(y/checkerSize))%2 == 1 {
				c = c2
			}
			i := (y*w + x) * 4
			copy(img.Data[i:i+4], c[:])
		}
	}
	return img
}

func (e *Engine) Noise(w, h int, kind imgalgebra.NoiseType, a, b float64, mono bool, seed int64) imgalgebra.Image {
	img := newImage(w, h)
	rng := rand.New(rand.NewSource(seed))

	sample := func() float64 {
		switch kind {
		case imgalgebra.NoiseUniform:
			return a + rng.Float64()*(b-a)
		default: // NoiseGaussian
			return a + rng.NormFloat64()*b
		}
	}
	clamp01 := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}

	for i := 0; i < w*h; i++ {
		if mono {
			v := clamp01(sample())
			img.Data[i*4+0] = v
			img.Data[i*4+1] = v
			img.Data[i*4+2] = v
		} else {
			img.Data[i*4+0] = clamp01(sample())
			img.Data[i*4+1] = clamp01(sample())
			img.Data[i*4+2] = clamp01(sample())
		}
		img.Data[i*4+3] = 1
	}
	return img
}

func (e *Engine) Gradient(w, h int, c1, c2 imgalgebra.Color) imgalgebra.Image {
	img := newImage(w, h)
	denom := float64(w - 1)
	if denom <= 0 {
		denom = 1
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := float64(x) / denom
			i := (y*w + x) * 4
			for c := 0; c < 4; c++ {
				img.Data[i+c] = c1[c]*(1-t) + c2[c]*t
			}
		}
	}
	return img
}

// Text rasterizes a single filled rectangle per glyph cell; it is a
// placeholder rasterizer, not a font shaper (no font library is wired;
// see DESIGN.md).
func (e *Engine) Text(w, h int, pos [2]float64, text string, fontSize float64, fontName string, c imgalgebra.Color) imgalgebra.Image {
	img := newImage(w, h)
	if fontSize <= 0 {
		fontSize = 12
	}
	glyphW := int(fontSize * 0.6)
	glyphH := int(fontSize)
	x0 := int(pos[0])
	y0 := int(pos[1])
	for gi := range text {
		gx := x0 + gi*(glyphW+1)
		for y := y0; y < y0+glyphH && y < h; y++ {
			for x := gx; x < gx+glyphW && x < w; x++ {
				if x < 0 || y < 0 {
					continue
				}
				i := (y*w + x) * 4
				copy(img.Data[i:i+4], c[:])
			}
		}
	}
	return img
}

func (e *Engine) ColorMap(img imgalgebra.Image, ramp imgalgebra.Ramp) imgalgebra.Image {
	out := newImage(img.Width, img.Height)
	for i := 0; i < img.Width*img.Height; i++ {
		lum := 0.299*img.Data[i*4+0] + 0.587*img.Data[i*4+1] + 0.114*img.Data[i*4+2]
		c := ramp.Sample(lum)
		copy(out.Data[i*4:i*4+4], c[:])
		out.Data[i*4+3] = img.Data[i*4+3]
	}
	return out
}

func (e *Engine) Premult(img imgalgebra.Image) imgalgebra.Image {
	out := newImage(img.Width, img.Height)
	for i := 0; i < img.Width*img.Height; i++ {
		a := img.Data[i*4+3]
		out.Data[i*4+0] = img.Data[i*4+0] * a
		out.Data[i*4+1] = img.Data[i*4+1] * a
		out.Data[i*4+2] = img.Data[i*4+2] * a
		out.Data[i*4+3] = a
	}
	return out
}

func (e *Engine) Unpremult(img imgalgebra.Image) imgalgebra.Image {
	out := newImage(img.Width, img.Height)
	for i := 0; i < img.Width*img.Height; i++ {
		a := img.Data[i*4+3]
		if a > 0 {
			out.Data[i*4+0] = img.Data[i*4+0] / a
			out.Data[i*4+1] = img.Data[i*4+1] / a
			out.Data[i*4+2] = img.Data[i*4+2] / a
		}
		out.Data[i*4+3] = a
	}
	return out
}

func (e *Engine) Invert(img imgalgebra.Image) imgalgebra.Image {
	out := newImage(img.Width, img.Height)
	for i := 0; i < img.Width*img.Height; i++ {
		out.Data[i*4+0] = 1 - img.Data[i*4+0]
		out.Data[i*4+1] = 1 - img.Data[i*4+1]
		out.Data[i*4+2] = 1 - img.Data[i*4+2]
		out.Data[i*4+3] = img.Data[i*4+3]
	}
	return out
}

func (e *Engine) Pow(img imgalgebra.Image, value float64) imgalgebra.Image {
	out := newImage(img.Width, img.Height)
	for i := 0; i < img.Width*img.Height; i++ {
		out.Data[i*4+0] = math.Pow(img.Data[i*4+0], value)
		out.Data[i*4+1] = math.Pow(img.Data[i*4+1], value)
		out.Data[i*4+2] = math.Pow(img.Data[i*4+2], value)
		out.Data[i*4+3] = img.Data[i*4+3]
	}
	return out
}

func (e *Engine) Saturate(img imgalgebra.Image, value float64) imgalgebra.Image {
	out := newImage(img.Width, img.Height)
	for i := 0; i < img.Width*img.Height; i++ {
		r, g, b := img.Data[i*4+0], img.Data[i*4+1], img.Data[i*4+2]
		lum := 0.299*r + 0.587*g + 0.114*b
		out.Data[i*4+0] = lum + (r-lum)*value
		out.Data[i*4+1] = lum + (g-lum)*value
		out.Data[i*4+2] = lum + (b-lum)*value
		out.Data[i*4+3] = img.Data[i*4+3]
	}
	return out
}

func (e *Engine) Flip(img imgalgebra.Image) imgalgebra.Image {
	out := newImage(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		srcY := img.Height - 1 - y
		copy(out.Data[y*img.Width*4:(y+1)*img.Width*4], img.Data[srcY*img.Width*4:(srcY+1)*img.Width*4])
	}
	return out
}

func (e *Engine) Flop(img imgalgebra.Image) imgalgebra.Image {
	out := newImage(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			srcX := img.Width - 1 - x
			si := (y*img.Width + srcX) * 4
			di := (y*img.Width + x) * 4
			copy(out.Data[di:di+4], img.Data[si:si+4])
		}
	}
	return out
}

// Rotate rotates around the image center by angleRadians. filter/
// filterWidth select the resampling kernel for non-axis-aligned angles;
// multiples of 90 degrees are resolved exactly without resampling so
// that boundary scenario §8#6 holds pixel-for-pixel.
func (e *Engine) Rotate(img imgalgebra.Image, angleRadians float64, filter imgalgebra.FilterKind, filterWidth float64) imgalgebra.Image {
	return rotateImpl(img, angleRadians, filter, filterWidth)
}

func rotateImpl(img imgalgebra.Image, angleRadians float64, filter imgalgebra.FilterKind, filterWidth float64) imgalgebra.Image {
	quarterTurns := int(math.Round(angleRadians/(math.Pi/2))) % 4
	if quarterTurns < 0 {
		quarterTurns += 4
	}
	if math.Abs(angleRadians-float64(quarterTurns)*math.Pi/2) < 1e-9 {
		return rotateExact90(img, quarterTurns)
	}
	return rotateGeneral(img, angleRadians, filter, filterWidth)
}

// rotateExact90 rotates by a multiple of 90 degrees counter-clockwise,
// swapping width/height on odd turns.
func rotateExact90(img imgalgebra.Image, quarterTurns int) imgalgebra.Image {
	w, h := img.Width, img.Height
	switch quarterTurns {
	case 0:
		out := newImage(w, h)
		copy(out.Data, img.Data)
		return out
	case 2:
		out := newImage(w, h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				si := (y*w + x) * 4
				di := ((h-1-y)*w + (w - 1 - x)) * 4
				copy(out.Data[di:di+4], img.Data[si:si+4])
			}
		}
		return out
	default:
		out := newImage(h, w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				si := (y*w + x) * 4
				var dx, dy int
				if quarterTurns == 1 {
					dx, dy = y, w-1-x
				} else { // 3
					dx, dy = h-1-y, x
				}
				di := (dy*h + dx) * 4
				copy(out.Data[di:di+4], img.Data[si:si+4])
			}
		}
		return out
	}
}

// rotateGeneral handles angles that are not a multiple of 90 degrees by
// an affine draw.Transformer, dispatched on filter the same way Resize
// dispatches its draw.Scaler (drawTransformerFor mirrors
// drawScalerFor), so the configured filter kind actually changes the
// resampling kernel instead of always bilinear-sampling.
func rotateGeneral(img imgalgebra.Image, angleRadians float64, filter imgalgebra.FilterKind, filterWidth float64) imgalgebra.Image {
	_ = filterWidth // the fixed x/image/draw kernels carry their own support width
	w, h := img.Width, img.Height
	src := toNRGBA(img)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	cx, cy := float64(w)/2, float64(h)/2
	cosA, sinA := math.Cos(-angleRadians), math.Sin(-angleRadians)
	// m is the source-to-destination transform draw.Transformer takes:
	// dx = (sx-cx)*cosA - (sy-cy)*sinA + cx, dy = (sx-cx)*sinA + (sy-cy)*cosA + cy.
	m := f64.Aff3{
		cosA, -sinA, cx*(1-cosA) + sinA*cy,
		sinA, cosA, cy*(1-cosA) - sinA*cx,
	}

	drawTransformerFor(filter).Transform(dst, m, src, src.Bounds(), draw.Over, nil)
	return fromNRGBA(dst)
}

func drawTransformerFor(filter imgalgebra.FilterKind) draw.Transformer {
	switch filter {
	case imgalgebra.FilterBox:
		return draw.NearestNeighbor
	case imgalgebra.FilterMitchell:
		return draw.CatmullRom
	default: // FilterTriangle
		return draw.ApproxBiLinear
	}
}

// Resize uses golang.org/x/image/draw for the resampling kernel.
func (e *Engine) Resize(img imgalgebra.Image, w, h int, filter imgalgebra.FilterKind, filterWidth float64) imgalgebra.Image {
	src := toNRGBA(img)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	scaler := drawScalerFor(filter)
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	return fromNRGBA(dst)
}

func drawScalerFor(filter imgalgebra.FilterKind) draw.Scaler {
	switch filter {
	case imgalgebra.FilterBox:
		return draw.NearestNeighbor
	case imgalgebra.FilterMitchell:
		return draw.CatmullRom
	default: // FilterTriangle
		return draw.ApproxBiLinear
	}
}

func toNRGBA(img imgalgebra.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i := 0; i < img.Width*img.Height; i++ {
		r := img.Data[i*4+0]
		g := img.Data[i*4+1]
		b := img.Data[i*4+2]
		a := img.Data[i*4+3]
		dst.SetNRGBA(i%img.Width, i/img.Width, color.NRGBA{
			R: uint8(clamp255(r * 255)),
			G: uint8(clamp255(g * 255)),
			B: uint8(clamp255(b * 255)),
			A: uint8(clamp255(a * 255)),
		})
	}
	return dst
}

func fromNRGBA(src *image.NRGBA) imgalgebra.Image {
	b := src.Bounds()
	out := newImage(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			i := (y*b.Dx() + x) * 4
			out.Data[i+0] = float64(c.R) / 255
			out.Data[i+1] = float64(c.G) / 255
			out.Data[i+2] = float64(c.B) / 255
			out.Data[i+3] = float64(c.A) / 255
		}
	}
	return out
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func (e *Engine) Over(fg, bg imgalgebra.Image) imgalgebra.Image {
	if fg.Empty() {
		return bg
	}
	if bg.Empty() {
		return fg
	}
	w, h := fg.Width, fg.Height
	out := newImage(w, h)
	for i := 0; i < w*h; i++ {
		fa := fg.Data[i*4+3]
		for c := 0; c < 3; c++ {
			out.Data[i*4+c] = fg.Data[i*4+c] + bg.Data[i*4+c]*(1-fa)
		}
		out.Data[i*4+3] = fa + bg.Data[i*4+3]*(1-fa)
	}
	return out
}

func (e *Engine) Blend(a, b imgalgebra.Image, v float64) imgalgebra.Image {
	if a.Empty() {
		a = newImage(b.Width, b.Height)
	}
	if b.Empty() {
		b = newImage(a.Width, a.Height)
	}
	w, h := a.Width, a.Height
	out := newImage(w, h)
	for i := 0; i < w*h*4; i++ {
		out.Data[i] = a.Data[i]*(1-v) + b.Data[i]*v
	}
	return out
}
