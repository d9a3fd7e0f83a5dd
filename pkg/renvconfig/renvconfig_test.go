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

package renvconfig

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfigEnvDefaultsAreAbsoluteUnderConfigDir(t *testing.T) {
	dir, err := ioutil.TempDir("", "renvconfig-")
	require.NoError(t, err)
	defer os.RemoveAll(dir) //nolint:errcheck

	env, err := NewConfigEnv(dir+"/env.yaml", []byte{})
	require.NoError(t, err)
	require.Equal(t, dir+"/media", env.MediaDir)
	require.Equal(t, dir+"/plugin-cache", env.PluginCacheDir)
	require.Equal(t, dir+"/render-log.db", env.LogDBPath)
	require.Equal(t, []string{dir + "/plugins"}, env.PluginPaths)
}

func TestNewConfigEnvRejectsRelativeMediaDir(t *testing.T) {
	_, err := NewConfigEnv("/cfg/env.yaml", []byte("mediaDir: relative/path\n"))
	require.Error(t, err)
}

func TestPrepareEnvironmentCreatesDirectories(t *testing.T) {
	dir, err := ioutil.TempDir("", "renvconfig-")
	require.NoError(t, err)
	defer os.RemoveAll(dir) //nolint:errcheck

	env, err := NewConfigEnv(dir+"/env.yaml", []byte{})
	require.NoError(t, err)
	require.NoError(t, env.PrepareEnvironment())

	info, err := os.Stat(env.MediaDir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	info, err = os.Stat(env.PluginCacheDir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestResolveMediaURLJoinsRelativePaths(t *testing.T) {
	env, err := NewConfigEnv("/cfg/env.yaml", []byte{})
	require.NoError(t, err)

	require.Equal(t, "/cfg/media/clip.png", env.ResolveMediaURL("clip.png"))
	require.Equal(t, "/abs/clip.png", env.ResolveMediaURL("/abs/clip.png"))
	require.Equal(t, "s3://bucket/clip.png", env.ResolveMediaURL("s3://bucket/clip.png"))
}

func TestSplitProtocol(t *testing.T) {
	scheme, rest, ok := SplitProtocol("s3://bucket/key")
	require.True(t, ok)
	require.Equal(t, "s3", scheme)
	require.Equal(t, "bucket/key", rest)

	_, _, ok = SplitProtocol("/plain/path")
	require.False(t, ok)
}
