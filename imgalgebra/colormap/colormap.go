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

// Package colormap holds the fixed table of named color-map ramps a
// ColorMapEffect's map_name resolves against (SPEC_FULL "SUPPLEMENTED
// FEATURES" #2).
package colormap

import "framegraph/imgalgebra"

// builtins is the fixed set of named ramps shipped with the renderer.
var builtins = map[string]imgalgebra.Ramp{
	"grayscale": {
		{0, 0, 0, 1},
		{1, 1, 1, 1},
	},
	"viridis": {
		{0.267, 0.005, 0.329, 1},
		{0.283, 0.141, 0.458, 1},
		{0.254, 0.265, 0.530, 1},
		{0.207, 0.372, 0.553, 1},
		{0.164, 0.471, 0.558, 1},
		{0.128, 0.567, 0.551, 1},
		{0.135, 0.659, 0.518, 1},
		{0.267, 0.749, 0.441, 1},
		{0.478, 0.821, 0.318, 1},
		{0.741, 0.873, 0.150, 1},
		{0.993, 0.906, 0.144, 1},
	},
	"heat": {
		{0, 0, 0, 1},
		{0.5, 0, 0, 1},
		{1, 0.4, 0, 1},
		{1, 1, 0, 1},
		{1, 1, 1, 1},
	},
}

// Lookup resolves name against the built-in ramp table. ok is false
// for an unrecognized name; effectregistry's ColorMapEffect factory
// then falls back to identity without reporting an error (SPEC_FULL #2).
func Lookup(name string) (ramp imgalgebra.Ramp, ok bool) {
	r, ok := builtins[name]
	return r, ok
}

// Names returns the registered ramp names, for diagnostics.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	return names
}
