// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kms.
//
// go-kms is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package memory keeps signer state in process memory. It backs the
// "memory" storage setting and the session and server tests, where chain
// state must not outlive the process.
package memory

import (
	"bytes"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-kms/pkg/storage"
)

// Storage holds records in a map guarded by a RWMutex. Values are cloned on
// the way in and out so callers never share a backing array with the store.
type Storage struct {
	mu      sync.RWMutex
	records map[string][]byte
	closed  bool
}

// New returns an empty store.
func New() *Storage {
	return &Storage{records: make(map[string][]byte)}
}

// open returns storage.ErrClosed once Close has run. Callers hold mu.
func (s *Storage) open() error {
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.open(); err != nil {
		return nil, err
	}
	record, ok := s.records[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(record), nil
}

// Put replaces the record under key. Permissions in opts have no meaning
// here and are ignored.
func (s *Storage) Put(key string, value []byte, _ *storage.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}
	if key == "" {
		return storage.ErrInvalidKey
	}
	s.records[key] = append([]byte{}, value...)
	return nil
}

func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}
	if _, ok := s.records[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// List returns the sorted keys starting with prefix.
func (s *Storage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.open(); err != nil {
		return nil, err
	}
	keys := slices.Sorted(maps.Keys(s.records))
	return slices.DeleteFunc(keys, func(key string) bool {
		return !strings.HasPrefix(key, prefix)
	}), nil
}

func (s *Storage) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.open(); err != nil {
		return false, err
	}
	_, ok := s.records[key]
	return ok, nil
}

// Close drops every record. Later calls fail with storage.ErrClosed, except
// Close itself.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.records = nil
	return nil
}

var _ storage.Backend = (*Storage)(nil)
