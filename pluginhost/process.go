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
	"context"
	"fmt"
	"os/exec"
	"sync"

	"framegraph/internal/nodeproc"
	"framegraph/pkg/rlog"
	"framegraph/propset"
)

// NewProcessDescriptor wraps inner so that "Load"/"Unload" start and
// stop a subprocess around it instead of being no-ops, while every
// other action (Describe/CreateInstance/Render/DestroyInstance) still
// dispatches straight to inner's MainEntryPoint (§4.3 process variant:
// the ABI's opaque handle can be backed by a subprocess in addition to
// a dynamically loaded library). cmd is called once per Load to build
// a fresh *exec.Cmd, since exec.Cmd isn't reusable after it exits.
//
// The subprocess is supervised with nodeproc.Process, the same
// context-scoped SIGINT-then-SIGKILL wrapper the render pipeline uses
// for its ffmpeg subprocesses: Unload cancels the context that Load
// started the process under, and process.stop()'s escalation applies
// identically here.
func NewProcessDescriptor(identifier string, cmd func() *exec.Cmd, inner MainEntryPoint, logger *rlog.Logger) *Descriptor {
	pp := &processPlugin{cmd: cmd, inner: inner, logger: logger}
	return &Descriptor{
		Identifier:     identifier,
		MainEntryPoint: pp.dispatch,
	}
}

type processPlugin struct {
	cmd    func() *exec.Cmd
	inner  MainEntryPoint
	logger *rlog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func (pp *processPlugin) dispatch(action string, handle interface{}, inArgs, outArgs *propset.Set) (ActionStatus, error) {
	switch action {
	case "Load":
		return pp.start()
	case "Unload":
		return pp.stop()
	default:
		if pp.inner == nil {
			return StatusUnsupported, nil
		}
		return pp.inner(action, handle, inArgs, outArgs)
	}
}

func (pp *processPlugin) start() (ActionStatus, error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.cancel != nil {
		return StatusOK, nil // already running
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc := nodeproc.NewProcess(pp.cmd())
	proc.SetPrefix("plugin: ")
	if pp.logger != nil {
		proc.SetStdoutLogger(pp.logger)
		proc.SetStderrLogger(pp.logger)
	}

	done := make(chan error, 1)
	go func() { done <- proc.Start(ctx) }()

	pp.cancel = cancel
	pp.done = done
	return StatusOK, nil
}

func (pp *processPlugin) stop() (ActionStatus, error) {
	pp.mu.Lock()
	cancel := pp.cancel
	done := pp.done
	pp.cancel = nil
	pp.done = nil
	pp.mu.Unlock()

	if cancel == nil {
		return StatusOK, nil // never started
	}
	cancel()
	if err := <-done; err != nil {
		return StatusFailed, fmt.Errorf("pluginhost: process plugin exited with error: %w", err)
	}
	return StatusOK, nil
}
