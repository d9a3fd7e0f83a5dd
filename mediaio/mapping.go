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
	"fmt"
	"os"
	"sync"
	"syscall"
)

// Mapping is a reference-counted read-only memory mapping of a file
// (§4.1 memory_map, §5 "memory-mapped files: reference-counted; last
// holder unmaps"). Acquire/Release replace RAII construction/
// destruction (SPEC_FULL #4).
type Mapping struct {
	mu       sync.Mutex
	path     string
	data     []byte
	refCount int
}

// mappingRegistry deduplicates mappings by path so concurrent readers
// of the same archive share one mmap.
type mappingRegistry struct {
	mu       sync.Mutex
	mappings map[string]*Mapping
}

var globalMappings = &mappingRegistry{mappings: make(map[string]*Mapping)}

// Acquire opens (or reuses) a read-only mapping of path and bumps its
// reference count. Pair every Acquire with a Release.
func Acquire(path string) (*Mapping, error) {
	globalMappings.mu.Lock()
	defer globalMappings.mu.Unlock()

	if m, ok := globalMappings.mappings[path]; ok {
		m.mu.Lock()
		m.refCount++
		m.mu.Unlock()
		return m, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %q for mapping: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat %q: %w", path, err)
	}
	size := fi.Size()
	if size == 0 {
		m := &Mapping{path: path, data: nil, refCount: 1}
		globalMappings.mappings[path] = m
		return m, nil
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("could not mmap %q: %w", path, err)
	}

	m := &Mapping{path: path, data: data, refCount: 1}
	globalMappings.mappings[path] = m
	return m, nil
}

// Release drops a reference; the last holder unmaps.
func (m *Mapping) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refCount--
	if m.refCount > 0 {
		return nil
	}

	globalMappings.mu.Lock()
	delete(globalMappings.mappings, m.path)
	globalMappings.mu.Unlock()

	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return syscall.Munmap(data)
}

// Bytes returns the mapped region. Valid only while the caller holds
// an outstanding Acquire reference.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Slice returns the byte range [address, address+length) within the
// mapping, the core's view of a Memory media reference (§3).
func (m *Mapping) Slice(address, length int64) ([]byte, error) {
	if address < 0 || length < 0 || address+length > int64(len(m.data)) {
		return nil, fmt.Errorf("mapping %q: range [%d,%d) out of bounds (len %d)",
			m.path, address, address+length, len(m.data))
	}
	return m.data[address : address+length], nil
}
