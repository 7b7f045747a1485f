/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/usergraph/store"
	"github.com/hypermodeinc/usergraph/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t)
	})
}

func TestIDsNeverReused(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "1", a.ID)
	b, err := s.Create(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, "2", b.ID)

	_, err = s.Delete(ctx, a.ID)
	require.NoError(t, err)

	c, err := s.Create(ctx, "Carol", "carol@example.com")
	require.NoError(t, err)
	require.Equal(t, "3", c.ID)
}

func TestIDCoercion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Create(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)

	u, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	require.Nil(t, u)

	deleted, err := s.Delete(ctx, "alice")
	require.NoError(t, err)
	require.False(t, deleted)

	for _, id := range []string{"1abc", " 1", "+1", "1.0"} {
		u, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, u, "id %q", id)
		require.Equal(t, "1", u.ID)
	}

	email := "alice@example.org"
	u, err = s.Update(ctx, "+1", store.Patch{Email: &email})
	require.NoError(t, err)
	require.Equal(t, &store.User{ID: "1", Name: "Alice", Email: email}, u)

	deleted, err = s.Delete(ctx, " 1.0")
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	a, err := s.Create(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a, got)

	b, err := s.Create(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []*store.User{a, b}, users)
}
