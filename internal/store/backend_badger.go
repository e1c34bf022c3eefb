// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend implements Backend on BadgerDB. Keys are "<namespace>:<key>".
type BadgerBackend struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadger opens (or creates) a BadgerDB at path.
func OpenBadger(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db at %s: %w", path, err)
	}
	return &BadgerBackend{db: db, ownsDB: true}, nil
}

// NewBadgerBackend wraps an existing DB. Close leaves the DB open.
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func badgerKey(namespace, key string) []byte {
	return []byte(namespace + ":" + key)
}

func (b *BadgerBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(namespace, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s:%s: %w", namespace, key, err)
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerBackend) Scan(ctx context.Context, namespace, prefix string, fn func(string, []byte) error) error {
	nsPrefix := namespace + ":"
	seek := []byte(nsPrefix + prefix)

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = seek
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key())[len(nsPrefix):]
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", item.Key(), err)
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerBackend) Commit(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			key := badgerKey(op.Namespace, op.Key)
			if op.Delete {
				if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("delete %s: %w", key, err)
				}
				continue
			}
			if err := txn.Set(key, op.Value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		return nil
	})
}

// Close closes the DB if it was opened by OpenBadger.
func (b *BadgerBackend) Close() error {
	if !b.ownsDB {
		return nil
	}
	return b.db.Close()
}
