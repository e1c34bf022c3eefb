// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package store

import (
	"context"
	"fmt"
)

type stagedKey struct {
	namespace string
	key       string
}

// Session is a unit of work over one Backend. It is not safe for concurrent use.
type Session struct {
	backend Backend
	order   []stagedKey
	staged  map[stagedKey]func() (Op, error)
}

func newSession(backend Backend) *Session {
	return &Session{backend: backend, staged: make(map[stagedKey]func() (Op, error))}
}

// Pending returns the number of staged writes.
func (s *Session) Pending() int { return len(s.staged) }

func (s *Session) stage(namespace, key string, build func() (Op, error)) {
	k := stagedKey{namespace, key}
	if _, exists := s.staged[k]; !exists {
		s.order = append(s.order, k)
	}
	s.staged[k] = build
}

func (s *Session) unstage(namespace, key string) {
	k := stagedKey{namespace, key}
	if _, exists := s.staged[k]; !exists {
		return
	}
	delete(s.staged, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Flush commits all staged writes atomically. Staged writes are kept on
// failure so the caller can Detach entities and Discard.
func (s *Session) Flush(ctx context.Context) error {
	if len(s.order) == 0 {
		return nil
	}
	ops := make([]Op, 0, len(s.order))
	for _, k := range s.order {
		op, err := s.staged[k]()
		if err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		ops = append(ops, op)
	}
	if err := s.backend.Commit(ctx, ops); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	s.Discard()
	return nil
}

// Discard drops all staged writes.
func (s *Session) Discard() {
	s.order = nil
	s.staged = make(map[stagedKey]func() (Op, error))
}
