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

// Package graphbuilder assembles, for one requested time, the root
// image node of the per-frame DAG a timeline document describes (§4.6).
// The builder is a pure function of (document, time, registry): built
// fresh per frame, it holds no per-frame state of its own beyond the
// media-mapping cache a timeline's Memory references share across
// frames (§5 "Memory-mapped files: reference-counted; last holder
// unmaps").
package graphbuilder

import (
	"errors"
	"fmt"
	"sync"

	"framegraph/effectregistry"
	"framegraph/imgnode"
	"framegraph/mediaio"
	"framegraph/pkg/renvconfig"
	"framegraph/pkg/rlog"
	"framegraph/rtime"
	"framegraph/timelinedoc"
)

// ErrInvalidArgument reports a malformed document that the caller must
// treat as a caller bug (§7 InvalidArgument): a nil timeline, an
// invalid time, a transition with no adjacent clips, or an unsupported
// item or media kind. An empty timeline is not an error; it builds an
// empty Composite.
var ErrInvalidArgument = errors.New("graphbuilder: invalid argument")

// Builder assembles per-frame DAGs against one timeline document shape.
// A Builder is safe for concurrent Build calls on disjoint times when
// the registry and env it was constructed with are not mutated
// concurrently (§5 Scheduling model).
type Builder struct {
	Registry *effectregistry.Registry
	Media    *mediaio.Reader
	Env      *renvconfig.ConfigEnv
	Logger   *rlog.Logger

	mu       sync.Mutex
	mappings map[string]*mediaio.Mapping
}

// New returns a Builder. registry and env may be shared across many
// Builders/frames; the Builder itself owns the memory-mapping cache
// for Memory media references encountered through it.
func New(registry *effectregistry.Registry, media *mediaio.Reader, env *renvconfig.ConfigEnv, logger *rlog.Logger) *Builder {
	return &Builder{
		Registry: registry,
		Media:    media,
		Env:      env,
		Logger:   logger,
		mappings: make(map[string]*mediaio.Mapping),
	}
}

// Close releases every memory mapping this Builder acquired (§5: the
// Builder is a holder; the last holder unmaps).
func (b *Builder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for path, m := range b.mappings {
		if err := m.Release(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("graphbuilder: release %q: %w", path, err)
		}
	}
	b.mappings = make(map[string]*mediaio.Mapping)
	return firstErr
}

// Build assembles the root node of the DAG that, when executed at t,
// yields timeline's frame (§4.6). t is expressed in timeline time.
func (b *Builder) Build(doc *timelinedoc.Timeline, t rtime.Time) (*imgnode.Node, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil timeline", ErrInvalidArgument)
	}
	if t.Invalid() {
		return nil, fmt.Errorf("%w: invalid time", ErrInvalidArgument)
	}

	start := doc.GlobalStartTime
	if start.Rate <= 0 {
		start = rtime.Zero(t.Rate) // §4.6 step 1 default
	}
	t0 := rtime.Offset(t, start)

	var acc *imgnode.Node
	for i := range doc.Tracks {
		track := &doc.Tracks[i]
		if track.Kind != timelinedoc.TrackVideo {
			continue
		}

		contrib, err := b.buildTrack(track, t0)
		if err != nil {
			return nil, err
		}
		if contrib == nil {
			continue
		}

		if acc == nil {
			acc = &imgnode.Node{
				Name: "stack:" + track.Name, Variant: imgnode.Composite,
				CompositePremult: true, Inputs: []*imgnode.Node{contrib},
			}
		} else {
			acc = &imgnode.Node{
				Name: "stack:" + track.Name, Variant: imgnode.Composite,
				CompositePremult: true, Inputs: []*imgnode.Node{contrib, acc},
			}
		}
	}
	if acc == nil {
		acc = &imgnode.Node{Name: "empty", Variant: imgnode.Composite}
	}
	return acc, nil
}

// buildTrack maps timeline-local time t into track-local time via the
// track's parent-time mapping (§4.6 step a), locates and builds the
// active item's contribution, then applies the track's own effect
// chain (§4.6 step f).
func (b *Builder) buildTrack(track *timelinedoc.Track, t rtime.Time) (*imgnode.Node, error) {
	tTrack := rtime.Offset(t, track.ParentTimeOffset)

	contrib, err := b.trackContribution(track, tTrack)
	if err != nil {
		return nil, err
	}
	if contrib == nil {
		return nil, nil
	}
	return b.applyTrackEffects(contrib, track.Effects), nil
}

// trackContribution implements §4.6 steps b-e: locate the active item
// and build its subgraph, or nil if the track contributes nothing this
// frame.
func (b *Builder) trackContribution(track *timelinedoc.Track, tTrack rtime.Time) (*imgnode.Node, error) {
	idx, ok := track.ItemAt(tTrack)
	if !ok {
		return nil, nil
	}
	item := &track.Items[idx]

	switch item.Kind {
	case timelinedoc.ItemGap:
		return nil, nil

	case timelinedoc.ItemClip:
		return b.buildClip(item)

	case timelinedoc.ItemTransition:
		return b.buildTransition(track, idx)

	case timelinedoc.ItemNestedStack:
		if item.NestedTrack == nil {
			return nil, nil
		}
		return b.buildTrack(item.NestedTrack, tTrack)

	default:
		return nil, fmt.Errorf("%w: unknown item kind %v", ErrInvalidArgument, item.Kind)
	}
}

// buildClip implements §4.6.1: a leaf rooted at the clip's media
// reference, wrapped with the time offset that carries track-local
// time into source-local time, then the clip's effect chain (§4.6.3).
func (b *Builder) buildClip(item *timelinedoc.Item) (*imgnode.Node, error) {
	leaf, err := b.buildLeaf(item)
	if err != nil {
		return nil, err
	}

	// t_src = t_track - (trimmed_start - source_start); encoded as the
	// leaf's own TimeOffset (§4.6.1, §3 Image node time offset).
	leaf.TimeOffset = item.TrimmedRangeInParent.Start.Sub(item.SourceRange.Start)

	return b.applyClipEffects(leaf, item.Effects), nil
}

// buildLeaf emits the Read/SequenceRead leaf for item's media
// reference (§4.6.1).
func (b *Builder) buildLeaf(item *timelinedoc.Item) (*imgnode.Node, error) {
	ref := item.Media
	switch ref.Kind {
	case timelinedoc.MediaExternal:
		return &imgnode.Node{
			Name: item.Name, Variant: imgnode.Read,
			Path: b.resolveURL(ref.URL),
		}, nil

	case timelinedoc.MediaSequence:
		return &imgnode.Node{
			Name: item.Name, Variant: imgnode.SequenceRead,
			SequenceRef: mediaio.SequenceRef{
				Directory:   ref.Directory,
				NamePrefix:  ref.NamePrefix,
				NameSuffix:  ref.NameSuffix,
				StartFrame:  ref.StartFrame,
				Step:        ref.Step,
				Rate:        item.SourceRange.Start.Rate,
				ZeroPadding: ref.ZeroPadding,
			},
		}, nil

	case timelinedoc.MediaMemory:
		data, err := b.memorySlice(ref.ArchivePath, ref.Address, ref.Length)
		if err != nil {
			if b.Logger != nil {
				b.Logger.Error().Src("mediaio").Node(item.Name).Msgf("%v", err)
			}
			// Non-nil empty slice: execRead's MemoryData != nil branch
			// still runs, decoding fails and the node resolves to an
			// empty image, same as any other ReadFailed (§4.1 Failure).
			data = []byte{}
		}
		return &imgnode.Node{
			Name: item.Name, Variant: imgnode.Read, MemoryData: data,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown media kind %v", ErrInvalidArgument, ref.Kind)
	}
}

// resolveURL resolves an External media reference's URL against the
// configured media directory (§6 URL protocol split).
func (b *Builder) resolveURL(url string) string {
	if b.Env != nil {
		return b.Env.ResolveMediaURL(url)
	}
	return url
}

// memorySlice returns the byte range [address, address+length) of
// path's memory mapping, acquiring and caching the mapping on first
// use for this Builder's lifetime.
func (b *Builder) memorySlice(path string, address, length int64) ([]byte, error) {
	b.mu.Lock()
	m, ok := b.mappings[path]
	b.mu.Unlock()
	if !ok {
		acquired, err := mediaio.Acquire(path)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		if existing, ok2 := b.mappings[path]; ok2 {
			acquired.Release() //nolint:errcheck
			m = existing
		} else {
			b.mappings[path] = acquired
			m = acquired
		}
		b.mu.Unlock()
	}
	return m.Slice(address, length)
}

// buildTransition implements §4.6.2: detects the two adjacent clips
// around the active Transition item and wraps their subgraphs, built
// at the same track-local time, in a Transition node over the item's
// range.
func (b *Builder) buildTransition(track *timelinedoc.Track, idx int) (*imgnode.Node, error) {
	item := &track.Items[idx]
	if idx == 0 || idx >= len(track.Items)-1 {
		return nil, fmt.Errorf("%w: transition %q has no adjacent clips", ErrInvalidArgument, item.Name)
	}
	prev := &track.Items[idx-1]
	next := &track.Items[idx+1]
	if prev.Kind != timelinedoc.ItemClip || next.Kind != timelinedoc.ItemClip {
		return nil, fmt.Errorf("%w: transition %q is not bracketed by two clips", ErrInvalidArgument, item.Name)
	}

	a, err := b.buildClip(prev)
	if err != nil {
		return nil, err
	}
	bNode, err := b.buildClip(next)
	if err != nil {
		return nil, err
	}

	return &imgnode.Node{
		Name: item.Name, Variant: imgnode.Transition,
		Inputs:          []*imgnode.Node{a, bNode},
		TransitionRange: item.TrimmedRangeInParent,
	}, nil
}
