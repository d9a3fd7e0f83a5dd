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

// Package timelinedoc declares the abstract edit-decision document
// shape the core reads (§3 Timeline document): timelines, tracks,
// items and effect descriptors. The document itself is consumed, not
// owned, by the core (§1 scope note) — this package is the narrow
// shape graphbuilder needs, not a full timeline-authoring library.
package timelinedoc

import "framegraph/rtime"

// TrackKind distinguishes the track kinds the builder composites.
// Only Video tracks contribute image-node output (§4.6 step 2).
type TrackKind int

// Track kinds.
const (
	TrackVideo TrackKind = iota
	TrackAudio
)

// ItemKind is the tagged variant of a timeline item (§3).
type ItemKind int

// Item kinds.
const (
	ItemClip ItemKind = iota
	ItemGap
	ItemTransition
	ItemNestedStack
)

// MediaKind is the tagged variant of a media reference (§3).
type MediaKind int

// Media reference kinds.
const (
	MediaExternal MediaKind = iota
	MediaMemory
	MediaSequence
)

// MediaRef is a clip's reference to its backing media (§3 Media
// reference).
type MediaRef struct {
	Kind MediaKind

	// External
	URL string

	// Memory: an (address, length) slice into a memory-mapped archive,
	// named by the archive path holding the mapping.
	ArchivePath string
	Address     int64
	Length      int64

	// Sequence
	Directory   string
	NamePrefix  string
	NameSuffix  string
	StartFrame  int
	Step        int
	ZeroPadding int
}

// Marker annotates a point or range on an item; the core passes these
// through untouched (§3: "Markers live on items").
type Marker struct {
	Name  string
	Range rtime.Range
}

// Effect is a document-side effect descriptor attached to an item or a
// track (§3, §4.4). Params is read through the untyped reader/writer
// interface of §4.4/§6: missing keys retain the caller's default.
type Effect struct {
	SchemaName string
	Params     *Params
}

// Item is one child of a Track: a clip, gap, transition or nested
// stack (§3).
type Item struct {
	Kind ItemKind
	Name string

	// TrimmedRangeInParent is the item's range expressed in the
	// containing track's time (§3, §4.6 step b).
	TrimmedRangeInParent rtime.Range

	// SourceRange is the clip's range in source (media) time. Unused
	// for Gap/Transition/NestedStack.
	SourceRange rtime.Range

	Media   MediaRef // Clip only
	Effects []Effect // document order, first effect closest to leaf (§4.6.1)

	Markers []Marker

	// NestedTrack holds the child track for an ItemNestedStack item.
	NestedTrack *Track
}

// Track is a horizontal lane of items, composited as a whole onto the
// stacking accumulator (§3, §5 Ordering).
type Track struct {
	Name string
	Kind TrackKind

	// Items must be sorted by TrimmedRangeInParent.Start ascending;
	// the builder locates the active item by binary search (§4.6
	// Complexity).
	Items []Item

	Effects []Effect // track-level effect chain, applied after item contribution (§4.6 step f)

	// ParentTimeOffset implements the track's parent-time mapping
	// (§4.6 step a): track-local time = timeline time - offset. Most
	// tracks run at timeline rate with a zero offset; a track nested
	// inside a NestedStack item carries that item's own time mapping.
	ParentTimeOffset rtime.Time
}

// Timeline is the top-level document the core reads (§3). Tracks are
// stored bottom-to-top, matching §4.6 step 2's traversal order and §5's
// observable composition ordering.
type Timeline struct {
	Name string

	// GlobalStartTime defaults to (0, rate) when absent (§4.6 step 1).
	GlobalStartTime rtime.Time

	// Tracks, bottom-to-top.
	Tracks []Track
}

// ItemAt returns the index of the item in t.Items whose
// TrimmedRangeInParent contains time, by binary search over the
// sorted, non-overlapping children (§4.6 Complexity: O(log
// #items_per_track)). ok is false if no item is active at time.
func (t *Track) ItemAt(time rtime.Time) (idx int, ok bool) {
	items := t.Items
	lo, hi := 0, len(items)
	for lo < hi {
		mid := (lo + hi) / 2
		r := items[mid].TrimmedRangeInParent
		switch {
		case time.Before(r.Start):
			hi = mid
		case !r.Contains(time):
			lo = mid + 1
		default:
			return mid, true
		}
	}
	return 0, false
}
