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

// Package renvconfig loads and validates the render pipeline's
// environment configuration: plugin search paths, media base directory
// and cache locations.
package renvconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// ConfigEnv stores the renderer's environment configuration.
type ConfigEnv struct {
	// MediaDir is the base directory external media URLs resolve
	// against (§4.1 read_still/read_sequence_frame).
	MediaDir string `yaml:"mediaDir"`

	// PluginPaths are the directories recursively scanned to depth ≤2
	// for `.ofx` plugin files (§4.3 discovery).
	PluginPaths []string `yaml:"pluginPaths"`

	// PluginCacheDir holds the bbolt-backed plugin descriptor cache.
	PluginCacheDir string `yaml:"pluginCacheDir"`

	// LogDBPath is the sqlite database backing the render log sink.
	LogDBPath string `yaml:"logDBPath"`

	ConfigDir string
}

// NewConfigEnv parses envYAML, defaults unset fields relative to
// envPath, and validates that path-like fields are absolute.
func NewConfigEnv(envPath string, envYAML []byte) (*ConfigEnv, error) {
	var env ConfigEnv
	if err := yaml.Unmarshal(envYAML, &env); err != nil {
		return nil, fmt.Errorf("could not unmarshal env.yaml: %w", err)
	}

	env.ConfigDir = filepath.Dir(envPath)

	if env.MediaDir == "" {
		env.MediaDir = env.ConfigDir + "/media"
	}
	if env.PluginCacheDir == "" {
		env.PluginCacheDir = env.ConfigDir + "/plugin-cache"
	}
	if env.LogDBPath == "" {
		env.LogDBPath = env.ConfigDir + "/render-log.db"
	}
	if len(env.PluginPaths) == 0 {
		env.PluginPaths = []string{env.ConfigDir + "/plugins"}
	}

	if !filepath.IsAbs(env.MediaDir) {
		return nil, fmt.Errorf("mediaDir %q is not an absolute path", env.MediaDir)
	}
	if !filepath.IsAbs(env.PluginCacheDir) {
		return nil, fmt.Errorf("pluginCacheDir %q is not an absolute path", env.PluginCacheDir)
	}
	if !filepath.IsAbs(env.LogDBPath) {
		return nil, fmt.Errorf("logDBPath %q is not an absolute path", env.LogDBPath)
	}
	for _, p := range env.PluginPaths {
		if !filepath.IsAbs(p) {
			return nil, fmt.Errorf("pluginPath %q is not an absolute path", p)
		}
	}

	return &env, nil
}

// PrepareEnvironment creates the directories the config points at.
func (env *ConfigEnv) PrepareEnvironment() error {
	if err := os.MkdirAll(env.MediaDir, 0o700); err != nil && !os.IsExist(err) {
		return fmt.Errorf("could not create media directory: %v: %w", env.MediaDir, err)
	}
	if err := os.MkdirAll(env.PluginCacheDir, 0o700); err != nil && !os.IsExist(err) {
		return fmt.Errorf("could not create plugin cache directory: %v: %w", env.PluginCacheDir, err)
	}
	return nil
}

// ResolveMediaURL resolves an External media reference's URL against
// MediaDir. Per §6, a URL with a "scheme://" prefix is left alone for
// an external resolver; otherwise it is treated as a path relative to
// MediaDir.
func (env *ConfigEnv) ResolveMediaURL(url string) string {
	if scheme, _, ok := SplitProtocol(url); ok {
		_ = scheme
		return url
	}
	if filepath.IsAbs(url) {
		return url
	}
	return filepath.Join(env.MediaDir, url)
}

// SplitProtocol splits a URL on "://" per §6's URL protocol split.
// ok is false when no protocol is present, in which case the whole
// input is a filesystem path.
func SplitProtocol(url string) (scheme, rest string, ok bool) {
	i := strings.Index(url, "://")
	if i < 0 {
		return "", url, false
	}
	return url[:i], url[i+3:], true
}
