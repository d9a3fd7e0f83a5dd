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

// Package mediaio implements the media-I/O layer: still-image reads,
// frame-indexed sequence reads, and reference-counted memory-mapped
// archive reads. Decode errors and missing files never abort a frame;
// callers get a ReadFailed and an empty image (§4.1 Failure).
package mediaio

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // decode support
	_ "image/jpeg" // decode support
	_ "image/png"  // decode support
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"framegraph/imgalgebra"
)

// ReadFailed is a non-fatal media I/O error (§4.1 Failure, §7
// NotFound/DecodeError). The affected node returns an empty image and
// rendering continues.
type ReadFailed struct {
	Path  string
	Cause error
}

func (e *ReadFailed) Error() string {
	return fmt.Sprintf("read failed: %s: %v", e.Path, e.Cause)
}

func (e *ReadFailed) Unwrap() error { return e.Cause }

// Reader produces image buffers for the three media reference kinds
// of §3: external paths, sequence frames, and memory-mapped slices.
type Reader struct {
	archives *ArchiveRegistry
}

// NewReader returns a Reader with its own archive registry.
func NewReader() *Reader {
	return &Reader{archives: NewArchiveRegistry()}
}

// ReadStill decodes a still image file. Three-channel images are
// promoted to four channels with alpha = 1.0 (§4.1).
func (r *Reader) ReadStill(path string) (imgalgebra.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return imgalgebra.Image{}, &ReadFailed{Path: path, Cause: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return imgalgebra.Image{}, &ReadFailed{Path: path, Cause: err}
	}
	return decodeToBuffer(img), nil
}

// ReadBytes decodes an in-memory image, used for Memory media
// references read through a Mapping (§4.1 memory_map).
func (r *Reader) ReadBytes(label string, data []byte) (imgalgebra.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return imgalgebra.Image{}, &ReadFailed{Path: label, Cause: err}
	}
	return decodeToBuffer(img), nil
}

func decodeToBuffer(img image.Image) imgalgebra.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := imgalgebra.Image{
		Width:  w,
		Height: h,
		Data:   make([]float64, w*h*4),
		ROI:    imgalgebra.Rect{X0: 0, Y0: 0, X1: w, Y1: h},
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			i := (y*w + x) * 4
			out.Data[i+0] = float64(c.R) / 65535
			out.Data[i+1] = float64(c.G) / 65535
			out.Data[i+2] = float64(c.B) / 65535
			out.Data[i+3] = float64(c.A) / 65535
		}
	}
	return out
}

// SequenceRef names a frame-indexed image sequence (§3 Media
// reference: Sequence).
type SequenceRef struct {
	Directory    string
	NamePrefix   string
	NameSuffix   string
	StartFrame   int
	Step         int
	Rate         float64
	ZeroPadding  int
}

// FrameName builds the prefix-and-number part of frame's filename, per
// §3's naming grammar: prefix + zero_pad(frame, padding). The caller
// appends the suffix.
func FrameName(prefix string, frame, padding int) string {
	return prefix + zeroPad(frame, padding)
}

func zeroPad(frame, padding int) string {
	s := strconv.Itoa(frame)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for len(s) < padding {
		s = "0" + s
	}
	if neg {
		s = "-" + s
	}
	return s
}

// SplitFilenameNumber splits a frame filename's longest trailing run
// of digits from its stem, per §6's sequence filename grammar and §8
// property 5 (round-trip with FrameName/zeroPad).
func SplitFilenameNumber(name string) (stem, digits string) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	return name[:i], name[i:]
}

// ReadSequenceFrame resolves ref's filename at time (already offset-
// adjusted by the caller per §4.5 SequenceRead) and decodes it.
// frameValue is floor(time.value) in the sequence's own rate, per
// §4.1: "time is converted to an integer frame index by
// floor(time.value - time_offset.value)". The frame number used in the
// filename is frameValue directly: StartFrame/Step are not folded into
// it (ground truth: SequenceReadOp stores them but never adds them into
// the frame index it names a file with).
func (r *Reader) ReadSequenceFrame(ref SequenceRef, frameValue int64) (imgalgebra.Image, error) {
	frame := int(frameValue)
	name := FrameName(ref.NamePrefix, frame, ref.ZeroPadding) + ref.NameSuffix
	path := filepath.Join(ref.Directory, name)
	return r.ReadStill(path)
}
