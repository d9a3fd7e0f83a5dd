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

package mediaio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestReadStillPromotesAlpha(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "still.png")
	writePNG(t, path, 3, 2)

	r := NewReader()
	img, err := r.ReadStill(path)
	require.NoError(t, err)
	require.Equal(t, 3, img.Width)
	require.Equal(t, 2, img.Height)
	require.Equal(t, 1.0, img.Data[3]) // alpha channel
}

func TestReadStillNotFound(t *testing.T) {
	r := NewReader()
	_, err := r.ReadStill("/no/such/file.png")
	var rf *ReadFailed
	require.True(t, errors.As(err, &rf))
}

func TestFrameNameAndSplitRoundTrip(t *testing.T) {
	cases := []struct {
		stem    string
		padding int
		frame   int
	}{
		{"render.", 4, 7},
		{"shot_", 0, 42},
		{"x", 6, 0},
	}
	for _, c := range cases {
		name := FrameName(c.stem, c.frame, c.padding)
		stem, digits := SplitFilenameNumber(name)
		require.Equal(t, c.stem, stem)
		require.Equal(t, zeroPad(c.frame, c.padding), digits)
	}
}

func TestReadSequenceFrameOpensZeroPaddedName(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "render.0006.png"), 1, 1)

	r := NewReader()
	ref := SequenceRef{
		Directory:   dir,
		NamePrefix:  "render.",
		NameSuffix:  ".png",
		StartFrame:  1,
		Step:        1,
		Rate:        24,
		ZeroPadding: 4,
	}
	_, err := r.ReadSequenceFrame(ref, 6) // frame index is frameValue itself, StartFrame is not added
	require.NoError(t, err)
}

func TestMappingRefCounting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	m1, err := Acquire(path)
	require.NoError(t, err)
	m2, err := Acquire(path)
	require.NoError(t, err)
	require.Same(t, m1, m2)

	slice, err := m1.Slice(6, 5)
	require.NoError(t, err)
	require.Equal(t, "world", string(slice))

	require.NoError(t, m1.Release())
	require.NoError(t, m2.Release())
}
