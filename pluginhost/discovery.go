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
	"os"
	"path/filepath"

	"framegraph/pkg/rlog"
)

const maxDiscoveryDepth = 2
const pluginExt = ".ofx"

// Discover recursively scans searchPaths to depth ≤2 for files with
// extension .ofx (§4.3 Plugin discovery). Directory-traversal errors
// are logged and skipped, never fatal.
func Discover(searchPaths []string, logger *rlog.Logger) []string {
	var found []string
	for _, root := range searchPaths {
		walkDepth(root, 0, &found, logger)
	}
	return found
}

func walkDepth(dir string, depth int, found *[]string, logger *rlog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if logger != nil {
			logger.Warn().Src("pluginhost").Msgf("could not scan %q: %v", dir, err)
		}
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if depth < maxDiscoveryDepth {
				walkDepth(path, depth+1, found, logger)
			}
			continue
		}
		if filepath.Ext(entry.Name()) == pluginExt {
			*found = append(*found, path)
		}
	}
}
