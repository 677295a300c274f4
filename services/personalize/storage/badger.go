// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for the Badger-backed store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging.
	// If nil, internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns production defaults.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a configuration for tests: in-memory mode,
// async writes, GC disabled.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{
		InMemory:   true,
		SyncWrites: false,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// badgerShardCount stripes list appends so same-key appends serialize
// without funneling every key through one lock.
const badgerShardCount = 64

// BadgerStore is the BadgerDB-backed Store implementation.
//
// # Description
//
// Values are stored directly under "ns/key". Bounded lists are stored as
// one JSON-encoded [][]byte value per key; Append does a locked
// read-modify-write so concurrent appends to the same key preserve
// cap-and-evict-oldest ordering.
//
// # Thread Safety
//
// Safe for concurrent use.
type BadgerStore struct {
	db        *badger.DB
	listLocks [badgerShardCount]sync.Mutex
	gcStop    chan struct{}
	gcDone    chan struct{}
}

// OpenBadger opens a BadgerStore with the given configuration.
//
// # Inputs
//
//   - cfg: Store configuration. Path is required unless InMemory is true.
//
// # Outputs
//
//   - *BadgerStore: The opened store. Caller must Close when done.
//   - error: Non-nil if the path is invalid or the database cannot open.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		gcStop: make(chan struct{}),
		gcDone: make(chan struct{}),
	}
	go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	return s, nil
}

// runGC periodically reclaims value log space.
func (s *BadgerStore) runGC(interval time.Duration, discardRatio float64) {
	defer close(s.gcDone)
	if interval <= 0 {
		return
	}
	if discardRatio <= 0 || discardRatio >= 1 {
		discardRatio = 0.5
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// ErrNoRewrite just means nothing to collect.
			_ = s.db.RunValueLogGC(discardRatio)
		case <-s.gcStop:
			return
		}
	}
}

func (s *BadgerStore) listLock(fullKey string) *sync.Mutex {
	return &s.listLocks[xxhash.Sum64String(fullKey)&(badgerShardCount-1)]
}

// Get returns the value for (ns, key).
func (s *BadgerStore) Get(_ context.Context, ns, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(compositeKey(ns, key)))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s/%s: %w", ns, key, err)
	}
	return out, nil
}

// Set writes the value for (ns, key).
func (s *BadgerStore) Set(_ context.Context, ns, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(compositeKey(ns, key)), value)
	})
	if err != nil {
		return fmt.Errorf("badger set %s/%s: %w", ns, key, err)
	}
	return nil
}

// Delete removes (ns, key).
func (s *BadgerStore) Delete(_ context.Context, ns, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(compositeKey(ns, key)))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s/%s: %w", ns, key, err)
	}
	return nil
}

// Append adds value to the bounded list at (ns, key).
func (s *BadgerStore) Append(_ context.Context, ns, key string, value []byte, maxLen int) error {
	fk := compositeKey(ns, key)
	mu := s.listLock(fk)
	mu.Lock()
	defer mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		var list [][]byte
		item, err := txn.Get([]byte(fk))
		switch {
		case err == nil:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &list); err != nil {
				return fmt.Errorf("decode list: %w", err)
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			// First append creates the list.
		default:
			return err
		}

		list = append(list, value)
		if maxLen > 0 && len(list) > maxLen {
			list = list[len(list)-maxLen:]
		}

		encoded, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("encode list: %w", err)
		}
		return txn.Set([]byte(fk), encoded)
	})
	if err != nil {
		return fmt.Errorf("badger append %s/%s: %w", ns, key, err)
	}
	return nil
}

// GetList returns the list at (ns, key), oldest first.
func (s *BadgerStore) GetList(ctx context.Context, ns, key string) ([][]byte, error) {
	raw, err := s.Get(ctx, ns, key)
	if err != nil {
		return nil, err
	}
	var list [][]byte
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode list %s/%s: %w", ns, key, err)
	}
	return list, nil
}

// Keys returns all keys in the namespace.
func (s *BadgerStore) Keys(_ context.Context, ns string) ([]string, error) {
	prefix := []byte(ns + "/")
	var keys []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			keys = append(keys, string(k[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger keys %s: %w", ns, err)
	}
	return keys, nil
}

// Close stops background GC and closes the database.
func (s *BadgerStore) Close() error {
	close(s.gcStop)
	<-s.gcDone
	return s.db.Close()
}
