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

package timelinedoc

// Params is the untyped key/value reader/writer effect parameters are
// read and written through (§4.4: "Readers/writers of parameters use
// an untyped reader/writer interface"; §6: "on write, the same keys
// must round-trip"). A missing key on read leaves the caller's default
// untouched.
type Params struct {
	values map[string]interface{}
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]interface{})}
}

// Write sets key to value, round-tripping through a later Read of the
// same key (§6).
func (p *Params) Write(key string, value interface{}) {
	if p.values == nil {
		p.values = make(map[string]interface{})
	}
	p.values[key] = value
}

// Read looks up key and, if present, assigns it into out. It reports
// whether key was present; on a missing key, out is left untouched so
// the caller's default applies (§4.4).
func (p *Params) Read(key string, out interface{}) bool {
	v, ok := p.values[key]
	if !ok {
		return false
	}
	switch o := out.(type) {
	case *string:
		s, ok := v.(string)
		if !ok {
			return false
		}
		*o = s
	case *float64:
		f, ok := v.(float64)
		if !ok {
			return false
		}
		*o = f
	case *int:
		switch n := v.(type) {
		case int:
			*o = n
		case float64:
			*o = int(n)
		default:
			return false
		}
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return false
		}
		*o = b
	case *[2]float64:
		f, ok := v.([2]float64)
		if !ok {
			return false
		}
		*o = f
	case *[4]float64:
		f, ok := v.([4]float64)
		if !ok {
			return false
		}
		*o = f
	case *[]float64:
		f, ok := v.([]float64)
		if !ok {
			return false
		}
		*o = f
	default:
		return false
	}
	return true
}

// ReadStringDefault reads key as a string, falling back to def if
// absent or of the wrong type.
func (p *Params) ReadStringDefault(key, def string) string {
	v := def
	p.Read(key, &v)
	return v
}

// ReadFloatDefault reads key as a float64, falling back to def.
func (p *Params) ReadFloatDefault(key string, def float64) float64 {
	v := def
	p.Read(key, &v)
	return v
}

// ReadIntDefault reads key as an int, falling back to def.
func (p *Params) ReadIntDefault(key string, def int) int {
	v := def
	p.Read(key, &v)
	return v
}

// ReadBoolDefault reads key as a bool, falling back to def.
func (p *Params) ReadBoolDefault(key string, def bool) bool {
	v := def
	p.Read(key, &v)
	return v
}
