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

// Package effectregistry translates document-side effect descriptors
// into image-node factories (§4.4). The built-in schema table mirrors
// §4.4's table exactly; callers may register additional schemas
// (e.g. a document-specific HostEffect alias) before building a frame.
package effectregistry

import (
	"errors"
	"fmt"
	"sync"

	"framegraph/imgnode"
	"framegraph/pluginhost"
	"framegraph/timelinedoc"
)

// ErrUnknownSchema is returned by Make for an unregistered schema name
// (§4.4, §7 UnknownSchema).
var ErrUnknownSchema = errors.New("effectregistry: unknown schema")

// Factory builds the image node for one effect descriptor, wired to
// inputs (0 for a generator, 1 for a unary filter, 2 for a
// builder-supplied transition-like effect).
type Factory func(params *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error)

// Registry maps schema names to node factories (§4.4 contract:
// register/make).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New returns a Registry with the built-in schemas of §4.4 already
// registered.
func New() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	registerBuiltins(r)
	return r
}

// Register adds or replaces the factory for schemaName.
func (r *Registry) Register(schemaName string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[schemaName] = factory
}

// Make builds the node for effect's schema, wired to inputs. Returns
// ErrUnknownSchema if no factory is registered (§7: logged at warning
// by the caller, effect skipped).
func (r *Registry) Make(effect timelinedoc.Effect, inputs []*imgnode.Node) (*imgnode.Node, error) {
	r.mu.RLock()
	f, ok := r.factories[effect.SchemaName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, effect.SchemaName)
	}
	params := effect.Params
	if params == nil {
		params = timelinedoc.NewParams()
	}
	return f(params, inputs)
}

// HostFactory returns a Factory that instantiates plugin pluginID on
// host for every HostEffect node it builds (§4.4 HostEffect row).
// Registered by the caller under whatever schema name the document
// uses for host-plugin effects, since that name is not fixed by §4.4.
func HostFactory(host *pluginhost.Host) Factory {
	return func(params *timelinedoc.Params, inputs []*imgnode.Node) (*imgnode.Node, error) {
		pluginID := params.ReadStringDefault("plugin_id", "")
		inst, err := host.CreateInstance(pluginID)
		if err != nil {
			return nil, fmt.Errorf("effectregistry: HostEffect %q: %w", pluginID, err)
		}
		return &imgnode.Node{
			Name:         "host:" + pluginID,
			Variant:      imgnode.HostEffect,
			Inputs:       inputs,
			HostHost:     host,
			HostInstance: inst,
		}, nil
	}
}
