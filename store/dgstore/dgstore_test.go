/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package dgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/dgraph-io/dgo/v250"
	"github.com/dgraph-io/dgo/v250/protos/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/usergraph/store"
	"github.com/hypermodeinc/usergraph/store/storetest"
)

// fakeClient answers the store's own queries and mutations from memory, in
// the shape Dgraph answers them.
type fakeClient struct {
	sync.Mutex
	nodes   map[string]*node
	order   []string
	lastUID uint64
	schema  string
	closed  bool

	queries   []string
	mutations []*api.Mutation

	// failWith, when set, is returned by every call.
	failWith error
}

func newFakeClient() *fakeClient {
	return &fakeClient{nodes: make(map[string]*node)}
}

func (f *fakeClient) Query(_ context.Context, q string,
	vars map[string]string) ([]byte, error) {

	f.Lock()
	defer f.Unlock()
	f.queries = append(f.queries, q)
	if f.failWith != nil {
		return nil, f.failWith
	}

	var res struct {
		Users []*node `json:"users"`
	}
	res.Users = []*node{}
	switch q {
	case getQuery:
		if n, ok := f.nodes[vars["$id"]]; ok {
			res.Users = append(res.Users, n)
		}
	case listQuery:
		for _, uid := range f.order {
			res.Users = append(res.Users, f.nodes[uid])
		}
	default:
		return nil, errors.Errorf("unexpected query %s", q)
	}
	return json.Marshal(res)
}

func (f *fakeClient) Mutate(_ context.Context, mu *api.Mutation) (map[string]string, error) {
	f.Lock()
	defer f.Unlock()
	f.mutations = append(f.mutations, mu)
	if f.failWith != nil {
		return nil, f.failWith
	}

	uids := make(map[string]string)
	if len(mu.SetJson) > 0 {
		var n node
		if err := json.Unmarshal(mu.SetJson, &n); err != nil {
			return nil, err
		}
		if blank, ok := strings.CutPrefix(n.UID, "_:"); ok {
			f.lastUID++
			n.UID = FormatUID(f.lastUID)
			uids[blank] = n.UID
			f.nodes[n.UID] = &n
			f.order = append(f.order, n.UID)
		} else if cur, ok := f.nodes[n.UID]; ok {
			if n.Name != nil {
				cur.Name = n.Name
			}
			if n.Email != nil {
				cur.Email = n.Email
			}
		}
	}
	if len(mu.DelNquads) > 0 {
		var uid string
		if _, err := fmt.Sscanf(string(mu.DelNquads), "<%s * * .", &uid); err != nil {
			return nil, err
		}
		uid = strings.TrimSuffix(uid, ">")
		delete(f.nodes, uid)
		for i, u := range f.order {
			if u == uid {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
	return uids, nil
}

func (f *fakeClient) Alter(_ context.Context, op *api.Operation) error {
	f.Lock()
	defer f.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.schema = op.Schema
	return nil
}

func (f *fakeClient) Close() {
	f.Lock()
	defer f.Unlock()
	f.closed = true
}

func newTestStore(t *testing.T) (*Store, *fakeClient) {
	t.Helper()
	fc := newFakeClient()
	s, err := newStore(context.Background(), fc)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s, fc
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestOpenInstallsSchema(t *testing.T) {
	_, fc := newTestStore(t)
	require.Equal(t, Schema, fc.schema)
}

func TestSchemaInstallFailure(t *testing.T) {
	fc := newFakeClient()
	fc.failWith = errors.New("connection refused")

	_, err := newStore(context.Background(), fc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestCreateSetsType(t *testing.T) {
	s, fc := newTestStore(t)

	u, err := s.Create(context.Background(), "Alice", "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "0x1", u.ID)

	require.Len(t, fc.mutations, 1)
	require.JSONEq(t,
		`{"uid":"_:user","name":"Alice","email":"alice@example.com","dgraph.type":["User"]}`,
		string(fc.mutations[0].SetJson))
}

func TestUpdateOnlySendsPatchedFields(t *testing.T) {
	ctx := context.Background()
	s, fc := newTestStore(t)

	u, err := s.Create(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)

	name := "Alicia"
	_, err = s.Update(ctx, u.ID, store.Patch{Name: &name})
	require.NoError(t, err)

	require.Len(t, fc.mutations, 2)
	require.JSONEq(t, `{"uid":"0x1","name":"Alicia"}`, string(fc.mutations[1].SetJson))
}

func TestDeleteSendsNquads(t *testing.T) {
	ctx := context.Background()
	s, fc := newTestStore(t)

	u, err := s.Create(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, "<0x1> * * .", string(fc.mutations[1].DelNquads))
}

func TestDecimalIDsAreUIDs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Create(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)

	u, err := s.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "0x1", u.ID)
}

func TestInvalidUID(t *testing.T) {
	ctx := context.Background()
	s, fc := newTestStore(t)

	for _, id := range []string{"alice", "", "0x", "0"} {
		_, err := s.Get(ctx, id)
		require.Error(t, err, "id %q", id)

		_, err = s.Update(ctx, id, store.Patch{})
		require.Error(t, err, "id %q", id)

		_, err = s.Delete(ctx, id)
		require.Error(t, err, "id %q", id)
	}
	require.Empty(t, fc.queries)
}

func TestQueryFailurePropagates(t *testing.T) {
	ctx := context.Background()
	s, fc := newTestStore(t)
	fc.failWith = errors.New("rpc error: unavailable")

	_, err := s.List(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rpc error: unavailable")

	_, err = s.Create(ctx, "Alice", "alice@example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rpc error: unavailable")
}

func TestClose(t *testing.T) {
	fc := newFakeClient()
	s, err := newStore(context.Background(), fc)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.True(t, fc.closed)
}

// TestLive runs the shared store cases against a real cluster.  It drops all
// data in that cluster first.
func TestLive(t *testing.T) {
	alpha := os.Getenv("TEST_DGRAPH_ALPHA")
	if alpha == "" {
		t.Skip("TEST_DGRAPH_ALPHA not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		dg, err := dgo.Open(alpha)
		require.NoError(t, err)
		require.NoError(t, dg.Alter(ctx, &api.Operation{DropAll: true}))
		dg.Close()

		s, err := Open(ctx, alpha)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, s.Close()) })
		return s
	})
}
