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

package rtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvalid(t *testing.T) {
	require.True(t, New(1, 0).Invalid())
	require.True(t, New(1, -1).Invalid())
	require.False(t, New(1, 24).Invalid())
}

func TestOffsetIdentityOnInvalid(t *testing.T) {
	tm := New(10, 24)
	require.Equal(t, tm, Offset(tm, Time{}))
}

func TestOffsetSubtracts(t *testing.T) {
	tm := New(10, 24)
	off := New(3, 24)
	require.Equal(t, New(7, 24), Offset(tm, off))
}

func TestRescaled(t *testing.T) {
	tm := New(24, 24)
	require.Equal(t, New(48, 48), tm.Rescaled(48))
}

func TestToFrames(t *testing.T) {
	require.Equal(t, int64(7), New(7.9, 24).ToFrames())
	require.Equal(t, int64(-1), New(-0.1, 24).ToFrames())
}

func TestRangeContainsHalfOpen(t *testing.T) {
	r := NewRange(New(10, 24), New(5, 24))
	require.True(t, r.Contains(New(10, 24)))
	require.True(t, r.Contains(New(14, 24)))
	require.False(t, r.Contains(New(15, 24)))
	require.False(t, r.Contains(New(9, 24)))
}

func TestRangeEndInclusive(t *testing.T) {
	r := NewRange(New(10, 24), New(5, 24))
	require.Equal(t, New(14, 24), r.EndInclusive())
}

func TestProgressClamped(t *testing.T) {
	r := NewRange(New(12, 24), New(12, 24))
	require.InDelta(t, 0.0, r.ProgressClamped(New(12, 24)), 1e-9)
	require.InDelta(t, 0.5, r.ProgressClamped(New(18, 24)), 1e-9)
	require.InDelta(t, 1.0, r.ProgressClamped(New(24, 24)), 1e-9)
	require.InDelta(t, 1.0, r.ProgressClamped(New(999, 24)), 1e-9)
	require.InDelta(t, 0.0, r.ProgressClamped(New(-999, 24)), 1e-9)
}

func TestOverlaps(t *testing.T) {
	a := NewRange(New(0, 24), New(10, 24))
	b := NewRange(New(5, 24), New(10, 24))
	c := NewRange(New(10, 24), New(10, 24))
	require.True(t, a.Overlaps(b))
	require.False(t, a.Overlaps(c))
}
