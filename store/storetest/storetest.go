/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package storetest holds the behaviour every store.Store must share.  Store
// packages run it from their own tests against a freshly opened, empty store.
package storetest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/usergraph/store"
)

// Opener returns an empty store that is closed when the test ends.
type Opener func(t *testing.T) store.Store

// Run runs the shared store cases.
func Run(t *testing.T, open Opener) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"EmptyList", testEmptyList},
		{"CreateThenList", testCreateThenList},
		{"CreateThenGet", testCreateThenGet},
		{"GetMissing", testGetMissing},
		{"UpdateName", testUpdateName},
		{"UpdateBoth", testUpdateBoth},
		{"UpdateNothing", testUpdateNothing},
		{"UpdateMissing", testUpdateMissing},
		{"DeleteThenGet", testDeleteThenGet},
		{"DeleteMissing", testDeleteMissing},
		{"InsertionOrder", testInsertionOrder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func ptr(s string) *string { return &s }

func mustCreate(t *testing.T, s store.Store, name, email string) *store.User {
	t.Helper()
	u, err := s.Create(context.Background(), name, email)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.NotEmpty(t, u.ID)
	require.Equal(t, name, u.Name)
	require.Equal(t, email, u.Email)
	return u
}

func testEmptyList(t *testing.T, s store.Store) {
	users, err := s.List(context.Background())
	require.NoError(t, err)
	require.NotNil(t, users)
	require.Empty(t, users)
}

func testCreateThenList(t *testing.T, s store.Store) {
	u := mustCreate(t, s, "Alice", "alice@example.com")

	users, err := s.List(context.Background())
	require.NoError(t, err)
	require.Contains(t, users, u)
}

func testCreateThenGet(t *testing.T, s store.Store) {
	u := mustCreate(t, s, "Alice", "alice@example.com")

	got, err := s.Get(context.Background(), u.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(u, got); diff != "" {
		t.Errorf("Get returned a different user (-want +got):\n%s", diff)
	}
}

func testGetMissing(t *testing.T, s store.Store) {
	mustCreate(t, s, "Alice", "alice@example.com")

	got, err := s.Get(context.Background(), "424242")
	require.NoError(t, err)
	require.Nil(t, got)
}

func testUpdateName(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "Alice", "alice@example.com")

	got, err := s.Update(ctx, u.ID, store.Patch{Name: ptr("Alicia")})
	require.NoError(t, err)
	require.Equal(t, &store.User{ID: u.ID, Name: "Alicia", Email: "alice@example.com"}, got)

	got, err = s.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Alicia", got.Name)
	require.Equal(t, "alice@example.com", got.Email)
}

func testUpdateBoth(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "Alice", "alice@example.com")

	got, err := s.Update(ctx, u.ID,
		store.Patch{Name: ptr("Alicia"), Email: ptr("alicia@example.com")})
	require.NoError(t, err)
	require.Equal(t,
		&store.User{ID: u.ID, Name: "Alicia", Email: "alicia@example.com"}, got)

	got, err = s.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t,
		&store.User{ID: u.ID, Name: "Alicia", Email: "alicia@example.com"}, got)
}

func testUpdateNothing(t *testing.T, s store.Store) {
	u := mustCreate(t, s, "Alice", "alice@example.com")

	got, err := s.Update(context.Background(), u.ID, store.Patch{})
	require.NoError(t, err)
	require.Equal(t, u, got)
}

func testUpdateMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "Alice", "alice@example.com")

	got, err := s.Update(ctx, "424242", store.Patch{Name: ptr("Nobody")})
	require.NoError(t, err)
	require.Nil(t, got)

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []*store.User{u}, users)
}

func testDeleteThenGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "Alice", "alice@example.com")

	deleted, err := s.Delete(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	deleted, err = s.Delete(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func testDeleteMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, "Alice", "alice@example.com")
	mustCreate(t, s, "Bob", "bob@example.com")

	before, err := s.List(ctx)
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, "424242")
	require.NoError(t, err)
	require.False(t, deleted)

	after, err := s.List(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("Delete of a missing id changed the store (-before +after):\n%s", diff)
	}
}

func testInsertionOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	names := []string{"Alice", "Bob", "Carol", "Dave", "Erin",
		"Frank", "Grace", "Heidi", "Ivan", "Judy", "Mallory"}

	var want []string
	for _, n := range names {
		mustCreate(t, s, n, n+"@example.com")
		want = append(want, n)
	}

	users, err := s.List(ctx)
	require.NoError(t, err)

	var got []string
	for _, u := range users {
		got = append(got, u.Name)
	}
	require.Equal(t, want, got)
}
