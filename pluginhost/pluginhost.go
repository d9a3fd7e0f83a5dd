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

// Package pluginhost makes out-of-process image-effect plugins usable
// as image nodes (§4.3): discovery, the plugin lifecycle state
// machine, and Render dispatch mediated through property sets.
package pluginhost

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"framegraph/imgalgebra"
	"framegraph/pkg/metrics"
	"framegraph/pkg/rlog"
	"framegraph/propset"
)

// ActionStatus is the status a plugin's main entry point returns.
type ActionStatus int

// Action statuses.
const (
	StatusOK ActionStatus = iota
	StatusFailed
	StatusUnsupported
)

// PluginError surfaces an action failure to the caller of the
// affected effect (§7 PluginError).
type PluginError struct {
	Action string
	Status ActionStatus
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("pluginhost: action %q failed with status %v", e.Action, e.Status)
}

// State is a plugin instance's lifecycle state (§4.3).
type State int

// Lifecycle states.
const (
	StateUnloaded State = iota
	StateLoaded
	StateDescribed
	StateInstantiated
	StateActive
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "Loaded"
	case StateDescribed:
		return "Described"
	case StateInstantiated:
		return "Instantiated"
	case StateActive:
		return "Active"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unloaded"
	}
}

// MainEntryPoint is a plugin's single dispatch entry point: (action,
// handle, in_args, out_args) -> status (§4.3, §6).
type MainEntryPoint func(action string, handle interface{}, inArgs, outArgs *propset.Set) (ActionStatus, error)

// Descriptor describes one plugin exposed by a loaded library (§4.3
// Plugin object / Plugin descriptor).
type Descriptor struct {
	APIName      string
	APIVersion   string
	Identifier   string
	VersionMajor int
	VersionMinor int

	// SetHost is invoked once per plugin with a host capability
	// property set (§4.3).
	SetHost func(host *propset.Set)

	MainEntryPoint MainEntryPoint
}

func (d *Descriptor) dispatch(action string, handle interface{}, inArgs, outArgs *propset.Set) (ActionStatus, error) {
	if d.MainEntryPoint == nil {
		err := fmt.Errorf("plugin %q has no main entry point", d.Identifier)
		metrics.RecordPluginDispatch(action, err)
		return StatusUnsupported, err
	}
	status, err := d.MainEntryPoint(action, handle, inArgs, outArgs)
	if err == nil && status != StatusOK {
		err = &PluginError{Action: action, Status: status}
	}
	metrics.RecordPluginDispatch(action, err)
	return status, err
}

// Library is a loaded plugin library exposing the two ABI entry
// points of §4.3/§6.
type Library interface {
	NumPlugins() int
	Plugin(index int) (*Descriptor, error)
}

// Instance is a live plugin instance: (plugin, property set, opaque
// handle) per §3.
type Instance struct {
	mu         sync.Mutex
	ID         string
	state      State
	descriptor *Descriptor
	props      *propset.Set
	handle     interface{}
}

// State returns the instance's current lifecycle state.
func (inst *Instance) State() State {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state
}

// Host owns the registry of described plugins and instantiates/
// dispatches effects against them.
//
// Discovery is two-phase (§4.3 Discovery): LoadAll walks searchPaths
// and learns which identifier lives at which library path, consulting
// cache by path+mtime so a library already seen at its current mtime
// doesn't pay a dynamic load just to be indexed; a library the cache
// does not know is opened once to read its identifiers. Its plugins'
// "Load" action is dispatched only the first time one of them is
// actually resolved for use (CreateInstance).
type Host struct {
	logger    *rlog.Logger
	hostProps *propset.Set
	cache     *DescriptorCache

	mu        sync.Mutex
	pathsByID map[string]string      // identifier -> library path, from LoadAll
	libs      map[string]Library     // library path -> opened library, once loaded
	registry  map[string]*Descriptor // identifier -> live, Load-dispatched descriptor
}

// NewHost returns a Host. cache may be nil to disable descriptor
// caching.
func NewHost(logger *rlog.Logger, hostProps *propset.Set, cache *DescriptorCache) *Host {
	return &Host{
		logger:    logger,
		hostProps: hostProps,
		cache:     cache,
		pathsByID: make(map[string]string),
		libs:      make(map[string]Library),
		registry:  make(map[string]*Descriptor),
	}
}

// LoadAll indexes every plugin library under searchPaths: it learns
// which identifiers exist and which path to find each one at,
// consulting and populating cache along the way. Only libraries with
// no cache entry at their current mtime are opened here. Index
// failures are logged and the library is omitted (§4.3 Failure); they
// never abort discovery of the rest. Plugins are Load-dispatched
// lazily, on first CreateInstance.
func (h *Host) LoadAll(searchPaths []string) {
	for _, path := range Discover(searchPaths, h.logger) {
		if err := h.indexOne(path); err != nil {
			h.logger.Error().Src("pluginhost").Msgf("index failed: %v: %v", path, err)
		}
	}
}

// indexOne records path's plugin identifiers in pathsByID, preferring
// a cache hit at path's current mtime over opening the library.
func (h *Host) indexOne(path string) error {
	if h.cache != nil {
		if records, ok := h.cache.Get(path); ok {
			h.mu.Lock()
			for _, r := range records {
				h.pathsByID[r.Identifier] = path
			}
			h.mu.Unlock()
			return nil
		}
	}

	lib, err := LoadLibrary(path)
	if err != nil {
		return err
	}

	n := lib.NumPlugins()
	records := make([]IdentityRecord, 0, n)
	h.mu.Lock()
	for i := 0; i < n; i++ {
		d, err := lib.Plugin(i)
		if err != nil {
			h.mu.Unlock()
			return fmt.Errorf("plugin %d in %q: %w", i, path, err)
		}
		h.pathsByID[d.Identifier] = path
		records = append(records, IdentityRecord{
			APIName:      d.APIName,
			APIVersion:   d.APIVersion,
			Identifier:   d.Identifier,
			VersionMajor: d.VersionMajor,
			VersionMinor: d.VersionMinor,
		})
	}
	// The library is already open; keep it so resolve doesn't reopen it.
	h.libs[path] = lib
	h.mu.Unlock()

	if h.cache != nil {
		if err := h.cache.Put(path, records); err != nil {
			h.logger.Error().Src("pluginhost").Msgf("cache put failed: %v: %v", path, err)
		}
	}
	return nil
}

// Lookup returns the already-loaded descriptor for identifier, if
// resolve has dispatched Load for it. It does not trigger a load;
// callers that want a plugin loaded on demand should use resolve via
// CreateInstance.
func (h *Host) Lookup(identifier string) (*Descriptor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.registry[identifier]
	return d, ok
}

// resolve returns identifier's live descriptor, loading its library
// and dispatching "Load" the first time it's needed (§4.3 lifecycle:
// Unloaded -> Loaded). Descriptors already in registry (either
// previously resolved, or injected directly by a caller that manages
// its own loading) are returned without dispatching Load again.
func (h *Host) resolve(identifier string) (*Descriptor, error) {
	h.mu.Lock()
	if d, ok := h.registry[identifier]; ok {
		h.mu.Unlock()
		return d, nil
	}
	path, ok := h.pathsByID[identifier]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("pluginhost: unknown plugin %q", identifier)
	}

	h.mu.Lock()
	lib, loaded := h.libs[path]
	h.mu.Unlock()
	if !loaded {
		var err error
		lib, err = LoadLibrary(path)
		if err != nil {
			return nil, fmt.Errorf("pluginhost: loading %q: %w", path, err)
		}
		h.mu.Lock()
		h.libs[path] = lib
		h.mu.Unlock()
	}

	n := lib.NumPlugins()
	for i := 0; i < n; i++ {
		d, err := lib.Plugin(i)
		if err != nil {
			return nil, fmt.Errorf("pluginhost: plugin %d in %q: %w", i, path, err)
		}
		if d.SetHost != nil {
			d.SetHost(h.hostProps)
		}
		if _, err := d.dispatch("Load", nil, propset.New(), propset.New()); err != nil {
			h.logger.Error().Src("pluginhost").Msgf("load failed for %q: %v", d.Identifier, err)
			continue
		}
		h.mu.Lock()
		h.registry[d.Identifier] = d
		h.mu.Unlock()
	}

	h.mu.Lock()
	d, ok := h.registry[identifier]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("pluginhost: %q did not resolve after loading %q", identifier, path)
	}
	return d, nil
}

// Shutdown dispatches "Unload" to every plugin resolve has loaded
// (§4.3 lifecycle: Loaded -> Unloaded), logging failures rather than
// aborting partway through, then closes the descriptor cache if one
// was configured.
func (h *Host) Shutdown() {
	h.mu.Lock()
	descriptors := make([]*Descriptor, 0, len(h.registry))
	for _, d := range h.registry {
		descriptors = append(descriptors, d)
	}
	h.registry = make(map[string]*Descriptor)
	h.mu.Unlock()

	for _, d := range descriptors {
		if _, err := d.dispatch("Unload", nil, propset.New(), propset.New()); err != nil {
			h.logger.Error().Src("pluginhost").Msgf("unload failed for %q: %v", d.Identifier, err)
		}
	}

	if h.cache != nil {
		if err := h.cache.Close(); err != nil {
			h.logger.Error().Src("pluginhost").Msgf("descriptor cache close: %v", err)
		}
	}
}

// CreateInstance drives a plugin through Describe and CreateInstance,
// leaving it Active and ready for Render.
func (h *Host) CreateInstance(pluginID string) (*Instance, error) {
	d, err := h.resolve(pluginID)
	if err != nil {
		return nil, err
	}

	inst := &Instance{ID: uuid.NewString(), state: StateLoaded, descriptor: d, props: propset.New()}

	if _, err := d.dispatch("Describe", nil, propset.New(), inst.props); err != nil {
		return nil, err
	}
	inst.state = StateDescribed

	outArgs := propset.New()
	if _, err := d.dispatch("CreateInstance", nil, propset.New(), outArgs); err != nil {
		return nil, err
	}
	handle, err := outArgs.GetPointer("Handle", 0)
	if err == nil {
		inst.handle = handle
	}
	// The ABI has no separate "activate" action, so CreateInstance moves
	// straight through Instantiated to Active (§4.3 lifecycle).
	inst.state = StateActive
	return inst, nil
}

// Render publishes sources/output through the instance's property
// set as pointer properties Source/Output, dispatches Render, and
// reads the mutated output back (§4.3 Render action). On failure it
// returns the first source unchanged (identity fallback, §4.3
// Failure) rather than an error, since render failures must not end
// the frame.
func (h *Host) Render(inst *Instance, sources []imgalgebra.Image, output imgalgebra.Image) imgalgebra.Image {
	inArgs := propset.New()
	for i, src := range sources {
		img := src
		inArgs.SetPointer("Source", i, &img)
	}
	outArgs := propset.New()
	outCopy := output
	outArgs.SetPointer("Output", 0, &outCopy)

	if _, err := inst.descriptor.dispatch("Render", inst.handle, inArgs, outArgs); err != nil {
		h.logger.Error().Src("pluginhost").Msgf("render failed for %q: %v", inst.descriptor.Identifier, err)
		if len(sources) > 0 {
			return sources[0]
		}
		return imgalgebra.Image{}
	}

	outPtr, err := outArgs.GetPointer("Output", 0)
	if err != nil {
		return output
	}
	if img, ok := outPtr.(*imgalgebra.Image); ok {
		return *img
	}
	return output
}

// DestroyInstance tears an instance down.
func (h *Host) DestroyInstance(inst *Instance) error {
	_, err := inst.descriptor.dispatch("DestroyInstance", inst.handle, propset.New(), propset.New())
	inst.mu.Lock()
	inst.state = StateDestroyed
	inst.mu.Unlock()
	return err
}
