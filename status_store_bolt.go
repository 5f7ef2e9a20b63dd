// status_store_bolt.go: Bolt-backed status store
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/boltdb/bolt"
)

var bucketPluginStatus = []byte("plugin_status")

var statusDisabled = []byte("disabled")

// BoltStatusStore persists disabled plugin ids in a bolt database file.
type BoltStatusStore struct {
	db     *bolt.DB
	logger Logger
}

// OpenBoltStatusStore opens or creates the database at path.
func OpenBoltStatusStore(path string, logger any) (*BoltStatusStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, NewStatusStoreError("failed to create directory", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, NewStatusStoreError("failed to open database", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPluginStatus)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, NewStatusStoreError("failed to create bucket", err)
	}
	return &BoltStatusStore{db: db, logger: NewLogger(logger)}, nil
}

// IsDisabled reports the stored decision. Read failures are logged and
// treated as enabled.
func (s *BoltStatusStore) IsDisabled(pluginID string) bool {
	var disabled bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPluginStatus).Get([]byte(pluginID))
		disabled = v != nil && string(v) == string(statusDisabled)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to read plugin status", "plugin", pluginID, "error", err)
		return false
	}
	return disabled
}

func (s *BoltStatusStore) SetDisabled(pluginID string, disabled bool) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPluginStatus)
		if disabled {
			return b.Put([]byte(pluginID), statusDisabled)
		}
		return b.Delete([]byte(pluginID))
	})
	if err != nil {
		return NewStatusStoreError("failed to update plugin "+pluginID, err)
	}
	return nil
}

// DisabledPlugins lists every disabled plugin id in sorted order.
func (s *BoltStatusStore) DisabledPlugins() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPluginStatus).ForEach(func(k, v []byte) error {
			if string(v) == string(statusDisabled) {
				ids = append(ids, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, NewStatusStoreError("failed to list disabled plugins", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the underlying database.
func (s *BoltStatusStore) Close() error {
	return s.db.Close()
}
