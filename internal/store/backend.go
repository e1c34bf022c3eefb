// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("store: not found")

// Op is one staged write. Delete ignores Value.
type Op struct {
	Namespace string
	Key       string
	Value     []byte
	Delete    bool
}

// Backend is a namespaced key/value engine.
type Backend interface {
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	// Scan calls fn for every key in namespace starting with prefix, in key order.
	Scan(ctx context.Context, namespace, prefix string, fn func(key string, value []byte) error) error
	// Commit applies ops atomically: all or none.
	Commit(ctx context.Context, ops []Op) error
	Close() error
}

// MemoryBackend is a Backend held in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBytes(v), nil
}

func (m *MemoryBackend) Scan(ctx context.Context, namespace, prefix string, fn func(string, []byte) error) error {
	m.mu.RLock()
	ns := m.data[namespace]
	keys := make([]string, 0, len(ns))
	for k := range ns {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = copyBytes(ns[k])
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryBackend) Commit(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		ns, ok := m.data[op.Namespace]
		if !ok {
			ns = make(map[string][]byte)
			m.data[op.Namespace] = ns
		}
		if op.Delete {
			delete(ns, op.Key)
			continue
		}
		ns[op.Key] = copyBytes(op.Value)
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
