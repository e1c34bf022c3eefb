// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Repository gives typed access to one backend namespace.
// Every read decodes a fresh value, so callers own what they get back.
type Repository[T any] struct {
	backend   Backend
	namespace string
	keyOf     func(*T) string
	encode    func(*T) ([]byte, error)
	decode    func([]byte) (*T, error)
}

func newRepository[T any](backend Backend, namespace string, keyOf func(*T) string) *Repository[T] {
	return &Repository[T]{
		backend:   backend,
		namespace: namespace,
		keyOf:     keyOf,
		encode:    func(v *T) ([]byte, error) { return json.Marshal(v) },
		decode: func(b []byte) (*T, error) {
			v := new(T)
			if err := json.Unmarshal(b, v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// Namespace returns the backend namespace of the repository.
func (r *Repository[T]) Namespace() string { return r.namespace }

// FindByID returns ErrNotFound when id is absent.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	data, err := r.backend.Get(ctx, r.namespace, id)
	if err != nil {
		return nil, err
	}
	v, err := r.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", r.namespace, id, err)
	}
	return v, nil
}

// FindBy returns every record matching criteria, in key order.
// A nil criteria matches everything.
func (r *Repository[T]) FindBy(ctx context.Context, criteria func(*T) bool) ([]*T, error) {
	return r.findPrefix(ctx, "", criteria)
}

// FindOne returns the first record matching criteria or ErrNotFound.
func (r *Repository[T]) FindOne(ctx context.Context, criteria func(*T) bool) (*T, error) {
	var found *T
	errStop := errors.New("stop")
	err := r.backend.Scan(ctx, r.namespace, "", func(key string, value []byte) error {
		v, err := r.decode(value)
		if err != nil {
			return fmt.Errorf("decode %s %s: %w", r.namespace, key, err)
		}
		if criteria(v) {
			found = v
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *Repository[T]) findPrefix(ctx context.Context, prefix string, criteria func(*T) bool) ([]*T, error) {
	var out []*T
	err := r.backend.Scan(ctx, r.namespace, prefix, func(key string, value []byte) error {
		v, err := r.decode(value)
		if err != nil {
			return fmt.Errorf("decode %s %s: %w", r.namespace, key, err)
		}
		if criteria == nil || criteria(v) {
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes v immediately, outside any Session.
func (r *Repository[T]) Save(ctx context.Context, v *T) error {
	op, err := r.putOp(v)
	if err != nil {
		return err
	}
	return r.backend.Commit(ctx, []Op{op})
}

// Delete removes id immediately. Deleting a missing id is not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.backend.Commit(ctx, []Op{{Namespace: r.namespace, Key: id, Delete: true}})
}

// Persist stages v in sess. The value is encoded at Flush time, so later
// mutations of v before Flush are included.
func (r *Repository[T]) Persist(sess *Session, v *T) {
	sess.stage(r.namespace, r.keyOf(v), func() (Op, error) { return r.putOp(v) })
}

// Detach drops any staged write of v from sess.
func (r *Repository[T]) Detach(sess *Session, v *T) {
	sess.unstage(r.namespace, r.keyOf(v))
}

// Remove stages a delete of id in sess.
func (r *Repository[T]) Remove(sess *Session, id string) {
	sess.stage(r.namespace, id, func() (Op, error) {
		return Op{Namespace: r.namespace, Key: id, Delete: true}, nil
	})
}

func (r *Repository[T]) putOp(v *T) (Op, error) {
	key := r.keyOf(v)
	if key == "" {
		return Op{}, fmt.Errorf("%s: empty key", r.namespace)
	}
	data, err := r.encode(v)
	if err != nil {
		return Op{}, fmt.Errorf("encode %s %s: %w", r.namespace, key, err)
	}
	return Op{Namespace: r.namespace, Key: key, Value: data}, nil
}
