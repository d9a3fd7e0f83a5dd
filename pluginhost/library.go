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

package pluginhost

import (
	"fmt"
	"plugin"
)

// loadedLibrary adapts a dynamically loaded Go plugin (opened via the
// standard library's plugin package) to the Library interface. No
// library in the retrieved corpus offers a better-grounded dynamic
// loading facility for an out-of-process ABI than the standard
// library's own plugin package (see DESIGN.md).
type loadedLibrary struct {
	numPlugins func() int
	getPlugin  func(int) *Descriptor
}

func (l *loadedLibrary) NumPlugins() int { return l.numPlugins() }

func (l *loadedLibrary) Plugin(index int) (*Descriptor, error) {
	if index < 0 || index >= l.numPlugins() {
		return nil, fmt.Errorf("plugin index %d out of range", index)
	}
	d := l.getPlugin(index)
	if d == nil {
		return nil, fmt.Errorf("plugin index %d: nil descriptor", index)
	}
	return d, nil
}

// LoadLibrary opens path as a Go plugin and binds its two ABI entry
// points, get_number_of_plugins and get_plugin (§4.3, §6).
func LoadLibrary(path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open plugin library %q: %w", path, err)
	}

	numSym, err := p.Lookup("GetNumberOfPlugins")
	if err != nil {
		return nil, fmt.Errorf("%q: missing GetNumberOfPlugins: %w", path, err)
	}
	numFn, ok := numSym.(func() int)
	if !ok {
		return nil, fmt.Errorf("%q: GetNumberOfPlugins has unexpected signature", path)
	}

	getSym, err := p.Lookup("GetPlugin")
	if err != nil {
		return nil, fmt.Errorf("%q: missing GetPlugin: %w", path, err)
	}
	getFn, ok := getSym.(func(int) *Descriptor)
	if !ok {
		return nil, fmt.Errorf("%q: GetPlugin has unexpected signature", path)
	}

	return &loadedLibrary{numPlugins: numFn, getPlugin: getFn}, nil
}
