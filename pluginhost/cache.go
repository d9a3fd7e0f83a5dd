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
	"encoding/json"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// IdentityRecord is the lightweight, serializable part of a
// Descriptor: enough to list what plugins a library offers without
// paying to dynamically load and introspect it again.
type IdentityRecord struct {
	APIName      string
	APIVersion   string
	Identifier   string
	VersionMajor int
	VersionMinor int
}

var bucketName = []byte("plugin_descriptors")

// DescriptorCache persists plugin identity records across process
// restarts, keyed by path+mtime, since full discovery (dynamic load +
// introspection of every library under the search paths) is expensive
// and most runs touch the same plugin set repeatedly.
type DescriptorCache struct {
	db *bolt.DB
}

// OpenDescriptorCache opens (creating if absent) a bbolt-backed cache
// at path.
func OpenDescriptorCache(path string) (*DescriptorCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open descriptor cache %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize descriptor cache: %w", err)
	}
	return &DescriptorCache{db: db}, nil
}

// Close releases the underlying bbolt database.
func (c *DescriptorCache) Close() error {
	return c.db.Close()
}

func cacheKey(path string, modTime time.Time) []byte {
	return []byte(fmt.Sprintf("%s@%d", path, modTime.UnixNano()))
}

// Get returns the cached identity records for path at its current
// mtime, if present.
func (c *DescriptorCache) Get(path string) ([]IdentityRecord, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	var out []IdentityRecord
	found := false
	c.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		b := tx.Bucket(bucketName)
		v := b.Get(cacheKey(path, info.ModTime()))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &out); err == nil {
			found = true
		}
		return nil
	})
	return out, found
}

// Put stores path's identity records keyed by its current mtime.
func (c *DescriptorCache) Put(path string, records []IdentityRecord) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put(cacheKey(path, info.ModTime()), data)
	})
}
