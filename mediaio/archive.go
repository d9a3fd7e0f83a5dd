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
	"fmt"
	"sync"

	"github.com/icza/bitio"
)

// MemoryReference is a byte range into a memory-mapped archive (§3
// Media reference: Memory).
type MemoryReference struct {
	Address int64
	Length  int64
}

// Archive is a memory-mapped media archive whose tail holds a
// byte-range index: entries of (path-length:16 bits, path bytes,
// address:64 bits, length:64 bits), preceded by a 32-bit entry count
// and read back field by field with bitio.
type Archive struct {
	mapping *Mapping
	index   map[string]MemoryReference
}

// ArchiveRegistry caches opened archives by path.
type ArchiveRegistry struct {
	mu       sync.Mutex
	archives map[string]*Archive
}

// NewArchiveRegistry returns an empty registry.
func NewArchiveRegistry() *ArchiveRegistry {
	return &ArchiveRegistry{archives: make(map[string]*Archive)}
}

// Open acquires a mapping for path and parses its trailing index.
// indexOffset is the byte offset within the mapping where the index
// begins (the caller/archive format determines this; Open does not
// search for it).
func (r *ArchiveRegistry) Open(path string, indexOffset int64) (*Archive, error) {
	r.mu.Lock()
	if a, ok := r.archives[path]; ok {
		r.mu.Unlock()
		return a, nil
	}
	r.mu.Unlock()

	m, err := Acquire(path)
	if err != nil {
		return nil, err
	}

	idx, err := parseIndex(m.Bytes()[indexOffset:])
	if err != nil {
		m.Release() //nolint:errcheck
		return nil, fmt.Errorf("could not parse archive index for %q: %w", path, err)
	}

	a := &Archive{mapping: m, index: idx}
	r.mu.Lock()
	r.archives[path] = a
	r.mu.Unlock()
	return a, nil
}

// Close releases the archive's underlying mapping.
func (a *Archive) Close() error {
	return a.mapping.Release()
}

// Lookup resolves entryPath (e.g. a clip's Memory media reference
// label) to its byte range, then slices it out of the mapping.
func (a *Archive) Lookup(entryPath string) ([]byte, error) {
	ref, ok := a.index[entryPath]
	if !ok {
		return nil, fmt.Errorf("archive: entry not found: %q", entryPath)
	}
	return a.mapping.Slice(ref.Address, ref.Length)
}

// parseIndex bit-decodes the archive's byte-range index: a uint32
// entry count, then per entry a uint16 path length, the path bytes,
// a uint64 address and a uint64 length.
func parseIndex(raw []byte) (map[string]MemoryReference, error) {
	r := bitio.NewReader(bytes.NewReader(raw))

	count, err := r.ReadBits(32)
	if err != nil {
		return nil, fmt.Errorf("read entry count: %w", err)
	}

	index := make(map[string]MemoryReference, count)
	for i := uint64(0); i < count; i++ {
		pathLen, err := r.ReadBits(16)
		if err != nil {
			return nil, fmt.Errorf("entry %d: read path length: %w", i, err)
		}

		path := make([]byte, pathLen)
		for j := range path {
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("entry %d: read path byte %d: %w", i, j, err)
			}
			path[j] = b
		}

		address, err := r.ReadBits(64)
		if err != nil {
			return nil, fmt.Errorf("entry %d: read address: %w", i, err)
		}
		length, err := r.ReadBits(64)
		if err != nil {
			return nil, fmt.Errorf("entry %d: read length: %w", i, err)
		}

		index[string(path)] = MemoryReference{Address: int64(address), Length: int64(length)}
	}
	return index, nil
}
