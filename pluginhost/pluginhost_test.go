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
	"testing"

	"github.com/stretchr/testify/require"

	"framegraph/imgalgebra"
	"framegraph/pkg/rlog"
	"framegraph/propset"
)

func fakeDescriptor(id string, invert bool) *Descriptor {
	return &Descriptor{
		APIName:    "fake",
		Identifier: id,
		MainEntryPoint: func(action string, handle interface{}, inArgs, outArgs *propset.Set) (ActionStatus, error) {
			switch action {
			case "Load", "Unload", "Describe", "CreateInstance", "DestroyInstance":
				return StatusOK, nil
			case "Render":
				src, err := inArgs.GetPointer("Source", 0)
				if err != nil {
					return StatusFailed, err
				}
				img := src.(*imgalgebra.Image)
				out := *img
				if invert {
					for i := range out.Data {
						if (i+1)%4 != 0 { // skip alpha
							out.Data[i] = 1 - out.Data[i]
						}
					}
				}
				outArgs.SetPointer("Output", 0, &out)
				return StatusOK, nil
			default:
				return StatusUnsupported, nil
			}
		},
	}
}

func newTestHost() *Host {
	h := NewHost(rlog.NewMockLogger(), propset.New(), nil)
	h.registry["invert.fake"] = fakeDescriptor("invert.fake", true)
	return h
}

func TestCreateInstanceAndRender(t *testing.T) {
	h := newTestHost()
	inst, err := h.CreateInstance("invert.fake")
	require.NoError(t, err)
	require.Equal(t, StateActive, inst.State())

	src := imgalgebra.Image{Width: 1, Height: 1, Data: []float64{0.2, 0.4, 0.6, 1}}
	out := h.Render(inst, []imgalgebra.Image{src}, imgalgebra.Image{})
	require.InDelta(t, 0.8, out.Data[0], 1e-9)
	require.InDelta(t, 1, out.Data[3], 1e-9)
}

func TestRenderFailureFallsBackToIdentity(t *testing.T) {
	h := NewHost(rlog.NewMockLogger(), propset.New(), nil)
	h.registry["broken"] = &Descriptor{
		Identifier: "broken",
		MainEntryPoint: func(action string, handle interface{}, inArgs, outArgs *propset.Set) (ActionStatus, error) {
			if action == "Render" {
				return StatusFailed, nil
			}
			return StatusOK, nil
		},
	}
	inst, err := h.CreateInstance("broken")
	require.NoError(t, err)

	src := imgalgebra.Image{Width: 1, Height: 1, Data: []float64{1, 0, 0, 1}}
	out := h.Render(inst, []imgalgebra.Image{src}, imgalgebra.Image{})
	require.Equal(t, src.Data, out.Data)
}

func TestUnknownPluginID(t *testing.T) {
	h := newTestHost()
	_, err := h.CreateInstance("does.not.exist")
	require.Error(t, err)
}

func TestShutdownDispatchesUnloadAndClearsRegistry(t *testing.T) {
	h := newTestHost()
	_, ok := h.Lookup("invert.fake")
	require.True(t, ok)

	h.Shutdown()

	_, ok = h.Lookup("invert.fake")
	require.False(t, ok)
}
