// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package store fronts a fixed table of radix trees ("databases") selected
// by index, with an optional bounded read cache per database.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	radix "github.com/webscalesoftwareltd/go-radix"
)

// ErrDatabaseNotFound is returned when a database index is out of range
// for the store.
var ErrDatabaseNotFound = errors.New("database not found")

// Config controls the shape of a Store.
type Config struct {
	// Databases is how many independent trees the store fronts. Must be
	// at least 1.
	Databases int

	// CacheEntries bounds each database's read cache. Zero disables
	// caching.
	CacheEntries int
}

type database struct {
	tree  *radix.Tree
	cache *lru.Cache[string, []byte]

	// mu serializes writers so the cache is always updated in the same
	// order as the tree. Readers do not take it; they see either the
	// pre-write or post-write state of both.
	mu sync.Mutex

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Store is a set of independently keyed radix trees addressed by database
// index. All operations are safe for concurrent use.
type Store struct {
	dbs []*database
	log *slog.Logger
}

// New builds a store with cfg.Databases empty trees. A nil logger falls
// back to slog.Default.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Databases < 1 {
		return nil, fmt.Errorf("store: at least one database is required, got %d", cfg.Databases)
	}
	if cfg.CacheEntries < 0 {
		return nil, fmt.Errorf("store: negative cache size %d", cfg.CacheEntries)
	}
	if logger == nil {
		logger = slog.Default()
	}

	dbs := make([]*database, cfg.Databases)
	for i := range dbs {
		db := &database{tree: radix.New()}
		if cfg.CacheEntries > 0 {
			c, err := lru.New[string, []byte](cfg.CacheEntries)
			if err != nil {
				return nil, fmt.Errorf("store: building read cache: %w", err)
			}
			db.cache = c
		}
		dbs[i] = db
	}

	logger.Debug("store created", "databases", cfg.Databases, "cacheEntries", cfg.CacheEntries)
	return &Store{dbs: dbs, log: logger}, nil
}

// Databases returns how many databases the store fronts.
func (s *Store) Databases() int {
	return len(s.dbs)
}

func (s *Store) database(index int) (*database, error) {
	if index < 0 || index >= len(s.dbs) {
		return nil, fmt.Errorf("store: database %d: %w", index, ErrDatabaseNotFound)
	}
	return s.dbs[index], nil
}

// Get returns a copy of the value stored under key in the given database.
func (s *Store) Get(db int, key []byte) ([]byte, bool, error) {
	d, err := s.database(db)
	if err != nil {
		return nil, false, err
	}

	if d.cache != nil {
		if v, ok := d.cache.Get(string(key)); ok {
			d.hits.Add(1)
			out := make([]byte, len(v))
			copy(out, v)
			return out, true, nil
		}
		d.misses.Add(1)
	}

	v, ok := d.tree.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

// Set stores value under key, reporting whether an existing value was
// replaced. The cache is written through so later reads hit it.
func (s *Store) Set(db int, key, value []byte) (bool, error) {
	d, err := s.database(db)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	replaced := d.tree.Set(key, value)
	if d.cache != nil {
		cached := make([]byte, len(value))
		copy(cached, value)
		d.cache.Add(string(key), cached)
	}
	return replaced, nil
}

// Delete removes key from the given database, reporting whether a value
// was removed.
func (s *Store) Delete(db int, key []byte) (bool, error) {
	d, err := s.database(db)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	deleted := d.tree.Delete(key)
	if d.cache != nil {
		d.cache.Remove(string(key))
	}
	return deleted, nil
}

// DeletePrefix removes every key beginning with prefix from the given
// database and returns how many keys were removed. The read cache is
// purged wholesale; tracking which cached keys fall under the prefix is
// not worth it.
func (s *Store) DeletePrefix(db int, prefix []byte) (int, error) {
	d, err := s.database(db)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	removed := d.tree.DeletePrefix(prefix)
	if d.cache != nil && removed > 0 {
		d.cache.Purge()
		s.log.Debug("read cache purged after prefix delete", "database", db, "removed", removed)
	}
	return removed, nil
}

// Walk visits every key beginning with prefix in the given database, in
// depth-first pre-order.
func (s *Store) Walk(db int, prefix []byte, fn radix.WalkFn) error {
	d, err := s.database(db)
	if err != nil {
		return err
	}
	d.tree.Walk(prefix, fn)
	return nil
}

// Flush drops every key in the given database.
func (s *Store) Flush(db int) error {
	d, err := s.database(db)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tree.Clear()
	if d.cache != nil {
		d.cache.Purge()
	}
	s.log.Debug("database flushed", "database", db)
	return nil
}

// Stats is a point-in-time snapshot of one database.
type Stats struct {
	Keys        int
	CacheHits   uint64
	CacheMisses uint64
}

// statsSnapshotLen is the wire size of a Stats snapshot: three 64-bit
// little-endian values.
const statsSnapshotLen = 24

// MarshalBinary encodes the snapshot as three little-endian 64-bit values.
func (st Stats) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, statsSnapshotLen)
	b = radix.AppendUint64(b, uint64(st.Keys))
	b = radix.AppendUint64(b, st.CacheHits)
	b = radix.AppendUint64(b, st.CacheMisses)
	return b, nil
}

// UnmarshalBinary decodes a snapshot written by MarshalBinary.
func (st *Stats) UnmarshalBinary(b []byte) error {
	if len(b) != statsSnapshotLen {
		return fmt.Errorf("store: stats snapshot must be %d bytes, got %d", statsSnapshotLen, len(b))
	}
	st.Keys = int(radix.DecodeUint64(b[:8]))
	st.CacheHits = radix.DecodeUint64(b[8:16])
	st.CacheMisses = radix.DecodeUint64(b[16:24])
	return nil
}

// Stats returns a snapshot of the given database.
func (s *Store) Stats(db int) (Stats, error) {
	d, err := s.database(db)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Keys:        d.tree.Len(),
		CacheHits:   d.hits.Load(),
		CacheMisses: d.misses.Load(),
	}, nil
}
