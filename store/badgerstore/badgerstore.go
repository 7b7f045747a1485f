/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package badgerstore keeps users in an embedded badger database, so they
// survive a restart without running a separate server.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/dgraph-io/badger/v4"
	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/usergraph/store"
	"github.com/hypermodeinc/usergraph/x"
)

const (
	userPrefix = "user/"
	seqKey     = "!seq/user"

	// Ids leased from badger at a time.  Unused ids of a lease are skipped
	// after a restart.
	seqBandwidth = 100
)

// Options configures Open.
type Options struct {
	// Dir holds the database files.  Ignored when InMemory is set.
	Dir string
	// InMemory keeps everything in memory.  Used by tests.
	InMemory bool
}

// Store is a store.Store backed by badger.  Users are kept under
// "user/" followed by their id as a big-endian uint64, so iterating the prefix
// returns users in creation order.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

var _ store.Store = (*Store)(nil)

type value struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Open opens, creating if needed, the database described by opts.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir).
		WithLogger(&x.ToGlog{}).
		WithInMemory(opts.InMemory)
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrapf(err, "while opening badger at %q", opts.Dir)
	}
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "while leasing user ids")
	}

	if !opts.InMemory {
		lsm, vlog := db.Size()
		glog.Infof("Opened badger store at %s. LSM: %s, value log: %s",
			opts.Dir, humanize.IBytes(uint64(lsm)), humanize.IBytes(uint64(vlog)))
	}
	return &Store{db: db, seq: seq}, nil
}

func userKey(id uint64) []byte {
	k := make([]byte, len(userPrefix)+8)
	copy(k, userPrefix)
	binary.BigEndian.PutUint64(k[len(userPrefix):], id)
	return k
}

func parseKey(k []byte) uint64 {
	return binary.BigEndian.Uint64(k[len(userPrefix):])
}

func decode(id uint64, item *badger.Item) (*store.User, error) {
	var v value
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "while decoding user %d", id)
	}
	return &store.User{ID: store.FormatSeqID(id), Name: v.Name, Email: v.Email}, nil
}

func get(txn *badger.Txn, id uint64) (*store.User, error) {
	item, err := txn.Get(userKey(id))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "while reading user %d", id)
	}
	return decode(id, item)
}

func put(txn *badger.Txn, id uint64, u *store.User) error {
	buf, err := json.Marshal(value{Name: u.Name, Email: u.Email})
	if err != nil {
		return err
	}
	return txn.Set(userKey(id), buf)
}

func (s *Store) Get(_ context.Context, id string) (*store.User, error) {
	n, ok := store.ParseSeqID(id)
	if !ok {
		return nil, nil
	}
	var u *store.User
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		u, err = get(txn, n)
		return err
	})
	return u, err
}

func (s *Store) List(_ context.Context) ([]*store.User, error) {
	users := make([]*store.User, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = []byte(userPrefix)
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			u, err := decode(parseKey(item.Key()), item)
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) Create(_ context.Context, name, email string) (*store.User, error) {
	// Sequences start at zero and ids start at one.
	n, err := s.seq.Next()
	if err != nil {
		return nil, errors.Wrap(err, "while allocating user id")
	}
	id := n + 1
	u := &store.User{ID: store.FormatSeqID(id), Name: name, Email: email}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return put(txn, id, u)
	}); err != nil {
		return nil, errors.Wrapf(err, "while creating user %d", id)
	}
	return u, nil
}

func (s *Store) Update(_ context.Context, id string, p store.Patch) (*store.User, error) {
	n, ok := store.ParseSeqID(id)
	if !ok {
		return nil, nil
	}
	var u *store.User
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		if u, err = get(txn, n); err != nil || u == nil {
			return err
		}
		if p.IsEmpty() {
			return nil
		}
		p.Apply(u)
		return put(txn, n, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	n, ok := store.ParseSeqID(id)
	if !ok {
		return false, nil
	}
	var found bool
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(n))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}
		found = true
		return txn.Delete(userKey(n))
	})
	if err != nil {
		return false, errors.Wrapf(err, "while deleting user %d", n)
	}
	return found, nil
}

// Close releases the unused part of the id lease and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		glog.Warningf("while releasing user id sequence: %v", err)
	}
	return s.db.Close()
}
