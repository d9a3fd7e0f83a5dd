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
	"time"

	"framegraph/imgalgebra"
	"framegraph/mediaio"
	"framegraph/pkg/metrics"
	"framegraph/pkg/rlog"
	"framegraph/rtime"
)

// Env is the execution environment shared by every node in a frame's
// DAG: the image-algebra collaborator, the media reader, and the
// pipeline logger (§1 scope note; §4.1; §4.3).
type Env struct {
	Engine imgalgebra.Engine
	Media  *mediaio.Reader
	Logger *rlog.Logger
}

// Exec evaluates the subtree rooted at n at timeline time t, per the
// per-variant semantics of §4.5. An empty Image is a legal result;
// callers propagate emptiness by returning empty in turn.
func (n *Node) Exec(env *Env, t rtime.Time) imgalgebra.Image {
	start := nowFunc()
	img := n.exec(env, t)
	metrics.ObserveNodeExec(n.Variant.String(), time.Since(start).Seconds())
	return img
}

// nowFunc is a seam so tests can avoid depending on wall-clock time.
var nowFunc = time.Now

func (n *Node) exec(env *Env, t rtime.Time) imgalgebra.Image {
	switch n.Variant {
	case Read:
		return n.execRead(env)
	case SequenceRead:
		return n.execSequenceRead(env, t)
	case Fill:
		return env.Engine.Fill(n.Width, n.Height, n.FillColor)
	case Checkers:
		return env.Engine.Checkers(n.Width, n.Height, n.CheckerSize, n.CheckerColor1, n.CheckerColor2)
	case Noise:
		return env.Engine.Noise(n.Width, n.Height, n.NoiseKind, n.NoiseA, n.NoiseB, n.NoiseMono, n.NoiseSeed)
	case Gradient:
		return env.Engine.Gradient(n.Width, n.Height, n.GradientColor1, n.GradientColor2)
	case Text:
		return env.Engine.Text(n.Width, n.Height, n.TextPos, n.TextString, n.TextFontSize, n.TextFontName, n.TextColor)
	case ColorMap:
		return n.execUnary(env, t, func(img imgalgebra.Image) imgalgebra.Image {
			return env.Engine.ColorMap(img, n.ColorMapRamp)
		})
	case Premult:
		return n.execUnary(env, t, env.Engine.Premult)
	case Unpremult:
		return n.execUnary(env, t, env.Engine.Unpremult)
	case Invert:
		return n.execUnary(env, t, env.Engine.Invert)
	case Pow:
		return n.execUnary(env, t, func(img imgalgebra.Image) imgalgebra.Image {
			return env.Engine.Pow(img, n.ScalarValue)
		})
	case Saturate:
		return n.execUnary(env, t, func(img imgalgebra.Image) imgalgebra.Image {
			return env.Engine.Saturate(img, n.ScalarValue)
		})
	case Flip:
		return n.execUnary(env, t, env.Engine.Flip)
	case Flop:
		return n.execUnary(env, t, env.Engine.Flop)
	case Rotate:
		return n.execUnary(env, t, func(img imgalgebra.Image) imgalgebra.Image {
			return env.Engine.Rotate(img, n.RotateAngleRadians, n.Filter, n.FilterWidth)
		})
	case Resize:
		return n.execUnary(env, t, func(img imgalgebra.Image) imgalgebra.Image {
			return env.Engine.Resize(img, n.ResizeWidth, n.ResizeHeight, n.Filter, n.FilterWidth)
		})
	case Composite:
		return n.execComposite(env, t)
	case Transition:
		return n.execTransition(env, t)
	case LinearTimeWarp:
		return n.execLinearTimeWarp(env, t)
	case HostEffect:
		return n.execHostEffect(env, t)
	default:
		return imgalgebra.Image{}
	}
}

func (n *Node) localTime(t rtime.Time) rtime.Time {
	return rtime.Offset(t, n.TimeOffset)
}

func (n *Node) execRead(env *Env) imgalgebra.Image {
	if n.MemoryData != nil {
		img, err := env.Media.ReadBytes(n.Name, n.MemoryData)
		if err != nil {
			logReadFailure(env, n, err)
			return imgalgebra.Image{}
		}
		return img
	}
	img, err := env.Media.ReadStill(n.Path)
	if err != nil {
		logReadFailure(env, n, err)
		return imgalgebra.Image{}
	}
	return img
}

func (n *Node) execSequenceRead(env *Env, t rtime.Time) imgalgebra.Image {
	local := n.localTime(t)
	frame := local.ToFrames()
	img, err := env.Media.ReadSequenceFrame(n.SequenceRef, frame)
	if err != nil {
		logReadFailure(env, n, err)
		return imgalgebra.Image{}
	}
	return img
}

func logReadFailure(env *Env, n *Node, err error) {
	metrics.MediaReadFailures.WithLabelValues(n.Variant.String()).Inc()
	if env.Logger != nil {
		env.Logger.Error().Src("mediaio").Node(n.Name).Msgf("%v", err)
	}
}

// execUnary evaluates input 0 at t-offset, then applies f (§4.5:
// "unary filters; evaluate input 0 at time - time_offset, then apply
// the primitive").
func (n *Node) execUnary(env *Env, t rtime.Time, f func(imgalgebra.Image) imgalgebra.Image) imgalgebra.Image {
	if len(n.Inputs) == 0 {
		return imgalgebra.Image{}
	}
	img := n.Inputs[0].Exec(env, n.localTime(t))
	if img.Empty() {
		return img
	}
	return f(img)
}

// execComposite implements §4.5 Composite: zero inputs -> empty; one
// input -> that input (premultiplied first iff CompositePremult); two
// or more -> over(fg, over(mid, ..., bg)) with input 0 as foreground,
// premultiplying only the foreground first iff CompositePremult.
func (n *Node) execComposite(env *Env, t rtime.Time) imgalgebra.Image {
	if len(n.Inputs) == 0 {
		return imgalgebra.Image{}
	}
	if len(n.Inputs) == 1 {
		img := n.Inputs[0].Exec(env, n.localTime(t))
		if n.CompositePremult && !img.Empty() {
			img = env.Engine.Premult(img)
		}
		return img
	}

	imgs := make([]imgalgebra.Image, len(n.Inputs))
	for i, in := range n.Inputs {
		imgs[i] = in.Exec(env, n.localTime(t))
	}
	if n.CompositePremult && !imgs[0].Empty() {
		imgs[0] = env.Engine.Premult(imgs[0])
	}

	acc := imgs[len(imgs)-1]
	for i := len(imgs) - 2; i >= 0; i-- {
		acc = env.Engine.Over(imgs[i], acc)
	}
	return acc
}

// execTransition implements §4.5 Transition: linear blend of the two
// inputs by clamped progress through TransitionRange.
func (n *Node) execTransition(env *Env, t rtime.Time) imgalgebra.Image {
	if len(n.Inputs) != 2 {
		return imgalgebra.Image{}
	}
	local := n.localTime(t)
	a := n.Inputs[0].Exec(env, local)
	b := n.Inputs[1].Exec(env, local)
	v := n.TransitionRange.ProgressClamped(local)
	return env.Engine.Blend(a, b, v)
}

// execLinearTimeWarp implements §4.5 LinearTimeWarp: evaluate input 0
// at floor((time - time_offset) * scalar). Nested warps compose
// multiplicatively simply by each applying its own rescaling in turn
// during depth-first exec (SPEC_FULL resolved open question).
func (n *Node) execLinearTimeWarp(env *Env, t rtime.Time) imgalgebra.Image {
	if len(n.Inputs) == 0 {
		return imgalgebra.Image{}
	}
	local := n.localTime(t)
	warped := rtime.Time{Value: local.Value * n.WarpScalar, Rate: local.Rate}.Floor()
	return n.Inputs[0].Exec(env, warped)
}

// execHostEffect routes to the plugin host with input buffers as
// source properties and a freshly allocated output buffer (§4.5).
func (n *Node) execHostEffect(env *Env, t rtime.Time) imgalgebra.Image {
	if n.HostHost == nil || n.HostInstance == nil {
		return imgalgebra.Image{}
	}
	local := n.localTime(t)
	sources := make([]imgalgebra.Image, len(n.Inputs))
	for i, in := range n.Inputs {
		sources[i] = in.Exec(env, local)
	}
	var output imgalgebra.Image
	if len(sources) > 0 {
		output = imgalgebra.Image{
			Width: sources[0].Width, Height: sources[0].Height,
			Data: make([]float64, sources[0].Width*sources[0].Height*4),
		}
	}
	return n.HostHost.Render(n.HostInstance, sources, output)
}
