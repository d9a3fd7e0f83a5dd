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

package graphbuilder

import (
	"framegraph/imgnode"
	"framegraph/timelinedoc"
)

const linearTimeWarpSchema = "LinearTimeWarpEffect"

// applyClipEffects wires a clip's effect chain onto leaf (§4.6.3): each
// effect in document order becomes a unary node whose sole input is
// the previous stage, first effect closest to the leaf. A
// LinearTimeWarp effect is hoisted directly above the leaf, below any
// other effect stage, since it mutates time before downstream filters
// re-enter the leaf.
func (b *Builder) applyClipEffects(leaf *imgnode.Node, effects []timelinedoc.Effect) *imgnode.Node {
	var warps, rest []timelinedoc.Effect
	for _, e := range effects {
		if e.SchemaName == linearTimeWarpSchema {
			warps = append(warps, e)
		} else {
			rest = append(rest, e)
		}
	}

	current := leaf
	for _, e := range warps {
		current = b.makeEffectNode(current, e)
	}
	for _, e := range rest {
		current = b.makeEffectNode(current, e)
	}
	return current
}

// applyTrackEffects wires a track's effect chain onto contrib, in
// document order (§4.6 step f). Tracks have no leaf to protect a
// LinearTimeWarp's time mutation from, so no reordering applies here.
func (b *Builder) applyTrackEffects(contrib *imgnode.Node, effects []timelinedoc.Effect) *imgnode.Node {
	current := contrib
	for _, e := range effects {
		current = b.makeEffectNode(current, e)
	}
	return current
}

// makeEffectNode asks the registry to build e's node over current. An
// unknown schema is logged at warning and the effect is skipped,
// leaving current unchanged (§4.4, §7 UnknownSchema).
func (b *Builder) makeEffectNode(current *imgnode.Node, e timelinedoc.Effect) *imgnode.Node {
	n, err := b.Registry.Make(e, []*imgnode.Node{current})
	if err != nil {
		if b.Logger != nil {
			b.Logger.Warn().Src("effectregistry").Msgf("%v", err)
		}
		return current
	}
	return n
}
