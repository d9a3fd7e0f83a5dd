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

package nodeproc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"framegraph/pkg/rlog"
)

func TestFakePlugin(t *testing.T) {
	if os.Getenv("GO_TEST_PROCESS") != "1" {
		return
	}
	if os.Getenv("SLEEP") == "1" {
		time.Sleep(1 * time.Hour)
	}
	fmt.Fprintf(os.Stdout, "ready")
	fmt.Fprintf(os.Stderr, "warn")
	os.Exit(0)
}

func fakeExecCommand(env ...string) *exec.Cmd {
	cmd := exec.Command(os.Args[0], "-test.run=TestFakePlugin")
	cmd.Env = append([]string{"GO_TEST_PROCESS=1"}, env...)
	return cmd
}

func TestProcessRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewProcess(fakeExecCommand())
	require.NoError(t, p.Start(ctx))
}

func TestProcessLogsStdoutAndStderr(t *testing.T) {
	logger := rlog.NewMockLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go logger.Start(ctx) //nolint:errcheck

	feed, unsub := logger.Subscribe()
	defer unsub()

	p := NewProcess(fakeExecCommand())
	p.SetTimeout(0)
	p.SetPrefix("plugin: ")
	p.SetStdoutLogger(logger)
	p.SetStderrLogger(logger)

	require.NoError(t, p.Start(ctx))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case l := <-feed:
			seen[l.Msg] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for log entry")
		}
	}
	require.True(t, seen["plugin: stdout: ready"])
	require.True(t, seen["plugin: stderr: warn"])
}

func TestProcessStopIsEscalatedOnTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := NewProcess(fakeExecCommand("SLEEP=1"))
	p.SetTimeout(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("process was not killed after escalation timeout")
	}
}
