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

package propset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDimensionLaw(t *testing.T) {
	s := New()
	require.Equal(t, 0, s.Dimension("k"))

	require.NoError(t, s.SetInt("k", 2, 7))
	require.Equal(t, 3, s.Dimension("k"))

	v0, err := s.GetInt("k", 0)
	require.NoError(t, err)
	require.Equal(t, int64(0), v0)

	v2, err := s.GetInt("k", 2)
	require.NoError(t, err)
	require.Equal(t, int64(7), v2)
}

func TestUnknownName(t *testing.T) {
	s := New()
	_, err := s.GetInt("missing", 0)
	require.ErrorIs(t, err, ErrUnknownName)
}

func TestBadIndex(t *testing.T) {
	s := New()
	require.NoError(t, s.SetInt("k", 0, 1))
	_, err := s.GetInt("k", 5)
	require.ErrorIs(t, err, ErrBadIndex)
}

func TestWrongType(t *testing.T) {
	s := New()
	require.NoError(t, s.SetInt("k", 0, 1))
	_, err := s.GetString("k", 0)
	require.ErrorIs(t, err, ErrWrongType)

	err = s.SetString("k", 0, "x")
	require.ErrorIs(t, err, ErrWrongType)
}

func TestResetLaw(t *testing.T) {
	s := New()
	require.ErrorIs(t, s.Reset("missing"), ErrUnknownName)

	require.NoError(t, s.SetString("k", 0, "a"))
	require.NoError(t, s.Reset("k"))
	require.Equal(t, 0, s.Dimension("k"))
}

func TestSetNRoundTrip(t *testing.T) {
	s := New()
	s.SetDoubleN("vals", []float64{1, 2, 3})
	got, err := s.GetDoubleN("vals")
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, got)
}

func TestPointerRoundTrip(t *testing.T) {
	s := New()
	type handle struct{ id int }
	h := &handle{id: 42}
	require.NoError(t, s.SetPointer("Output", 0, h))

	got, err := s.GetPointer("Output", 0)
	require.NoError(t, err)
	require.Same(t, h, got)
}
