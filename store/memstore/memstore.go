/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package memstore keeps users in an ordered slice in process memory.  Nothing
// survives a restart.
package memstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/hypermodeinc/usergraph/store"
)

// IDPolicy decides how a new user's id is picked.
type IDPolicy string

const (
	// Monotonic hands out ids from a counter that never goes backwards, so ids
	// are never reused, even after deletes.
	Monotonic IDPolicy = "monotonic"

	// Length uses len(users)+1 as the next id.  After a delete this can hand
	// out an id that a surviving user still holds.  Lookups then find the
	// earliest inserted user with that id.  Kept for compatibility with
	// clients that depend on the historical numbering.
	Length IDPolicy = "length"
)

// ParseIDPolicy validates s as an IDPolicy.
func ParseIDPolicy(s string) (IDPolicy, error) {
	switch p := IDPolicy(s); p {
	case Monotonic, Length:
		return p, nil
	default:
		return "", errors.Errorf("unknown id policy %q, expected %q or %q",
			s, Monotonic, Length)
	}
}

// SeedUsers are the users a freshly started server has when seeding is on.
var SeedUsers = []store.User{
	{ID: "1", Name: "Alice", Email: "alice@example.com"},
	{ID: "2", Name: "Bob", Email: "bob@example.com"},
}

type record struct {
	id    uint64
	name  string
	email string
}

// Store is an in-memory store.Store.  A single mutex serialises writers, so
// each request sees the slice either before or after another request's change.
type Store struct {
	sync.RWMutex
	policy IDPolicy
	users  []*record
	lastID uint64
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store that assigns ids according to policy.
func New(policy IDPolicy) *Store {
	if policy == "" {
		policy = Monotonic
	}
	return &Store{policy: policy}
}

// NewSeeded returns a Store holding SeedUsers.
func NewSeeded(policy IDPolicy) *Store {
	s := New(policy)
	for _, u := range SeedUsers {
		id, _ := store.ParseSeqID(u.ID)
		s.users = append(s.users, &record{id: id, name: u.Name, email: u.Email})
		if id > s.lastID {
			s.lastID = id
		}
	}
	return s
}

func (r *record) user() *store.User {
	return &store.User{ID: store.FormatSeqID(r.id), Name: r.name, Email: r.email}
}

// find returns the index of the first user with id, or -1.
func (s *Store) find(id string) int {
	n, ok := store.ParseSeqID(id)
	if !ok {
		return -1
	}
	for i, r := range s.users {
		if r.id == n {
			return i
		}
	}
	return -1
}

func (s *Store) nextID() uint64 {
	if s.policy == Length {
		return uint64(len(s.users)) + 1
	}
	s.lastID++
	return s.lastID
}

func (s *Store) Get(_ context.Context, id string) (*store.User, error) {
	s.RLock()
	defer s.RUnlock()

	if i := s.find(id); i >= 0 {
		return s.users[i].user(), nil
	}
	return nil, nil
}

func (s *Store) List(_ context.Context) ([]*store.User, error) {
	s.RLock()
	defer s.RUnlock()

	users := make([]*store.User, 0, len(s.users))
	for _, r := range s.users {
		users = append(users, r.user())
	}
	return users, nil
}

func (s *Store) Create(_ context.Context, name, email string) (*store.User, error) {
	s.Lock()
	defer s.Unlock()

	r := &record{id: s.nextID(), name: name, email: email}
	if r.id > s.lastID {
		s.lastID = r.id
	}
	s.users = append(s.users, r)
	return r.user(), nil
}

func (s *Store) Update(_ context.Context, id string, p store.Patch) (*store.User, error) {
	s.Lock()
	defer s.Unlock()

	i := s.find(id)
	if i < 0 {
		return nil, nil
	}
	r := s.users[i]
	u := r.user()
	p.Apply(u)
	r.name, r.email = u.Name, u.Email
	return u, nil
}

func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.Lock()
	defer s.Unlock()

	i := s.find(id)
	if i < 0 {
		return false, nil
	}
	s.users = append(s.users[:i], s.users[i+1:]...)
	return true, nil
}

// Len returns the number of users held.
func (s *Store) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.users)
}

func (s *Store) Close() error {
	return nil
}
