/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package dgstore keeps users as nodes in a Dgraph cluster, reached through
// dgo.  A user's id is its node uid.
package dgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dgraph-io/dgo/v250"
	"github.com/dgraph-io/dgo/v250/protos/api"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/usergraph/store"
)

const (
	// Schema is installed on Open.
	Schema = `
name: string .
email: string .

type User {
	name
	email
}
`

	getQuery = `query getUser($id: string) {
	users(func: uid($id)) @filter(type(User)) {
		uid
		name
		email
	}
}`

	listQuery = `{
	users(func: type(User)) {
		uid
		name
		email
	}
}`

	newUserBlank = "user"
)

// client is the store's view of Dgraph.  Going through this rather than dgo
// directly lets the store be tested without a running cluster.
type client interface {
	Query(ctx context.Context, q string, vars map[string]string) ([]byte, error)
	Mutate(ctx context.Context, mu *api.Mutation) (map[string]string, error)
	Alter(ctx context.Context, op *api.Operation) error
	Close()
}

type dgoClient struct {
	dg *dgo.Dgraph
}

func (c *dgoClient) Query(ctx context.Context, q string,
	vars map[string]string) ([]byte, error) {

	if glog.V(3) {
		glog.Infof("Executing Dgraph query: \n%s\nwith vars %v", q, vars)
	}
	txn := c.dg.NewReadOnlyTxn()
	defer func() { _ = txn.Discard(ctx) }()

	resp, err := txn.QueryWithVars(ctx, q, vars)
	if err != nil {
		return nil, err
	}
	return resp.GetJson(), nil
}

func (c *dgoClient) Mutate(ctx context.Context, mu *api.Mutation) (map[string]string, error) {
	if glog.V(3) {
		glog.Infof("Executing Dgraph mutation: set %s del %s", mu.SetJson, mu.DelNquads)
	}
	txn := c.dg.NewTxn()
	defer func() { _ = txn.Discard(ctx) }()

	mu.CommitNow = true
	resp, err := txn.Mutate(ctx, mu)
	if err != nil {
		return nil, err
	}
	return resp.GetUids(), nil
}

func (c *dgoClient) Alter(ctx context.Context, op *api.Operation) error {
	return c.dg.Alter(ctx, op)
}

func (c *dgoClient) Close() {
	c.dg.Close()
}

// Store is a store.Store backed by Dgraph.  Each call is its own commit-now
// round trip: there is no transaction spanning the read and write of Update or
// Delete.
type Store struct {
	client client
}

var _ store.Store = (*Store)(nil)

// Open connects to the Dgraph cluster at connStr (for example
// dgraph://localhost:9080) and installs Schema.
func Open(ctx context.Context, connStr string) (*Store, error) {
	dg, err := dgo.Open(connStr)
	if err != nil {
		return nil, errors.Wrapf(err, "while connecting to Dgraph at %s", connStr)
	}
	s, err := newStore(ctx, &dgoClient{dg: dg})
	if err != nil {
		dg.Close()
		return nil, err
	}
	glog.Infof("Connected to Dgraph at %s", connStr)
	return s, nil
}

func newStore(ctx context.Context, c client) (*Store, error) {
	if err := c.Alter(ctx, &api.Operation{Schema: Schema}); err != nil {
		return nil, errors.Wrap(err, "while installing the User schema")
	}
	return &Store{client: c}, nil
}

// node is a User as Dgraph sees it.
type node struct {
	UID   string   `json:"uid,omitempty"`
	Name  *string  `json:"name,omitempty"`
	Email *string  `json:"email,omitempty"`
	Type  []string `json:"dgraph.type,omitempty"`
}

func (n *node) user() *store.User {
	u := &store.User{ID: n.UID}
	if n.Name != nil {
		u.Name = *n.Name
	}
	if n.Email != nil {
		u.Email = *n.Email
	}
	return u
}

// ParseUID parses a uid in Dgraph's hex form (0x1f) or as a decimal.
func ParseUID(id string) (uint64, error) {
	uid, err := strconv.ParseUint(id, 0, 64)
	if err != nil || uid == 0 {
		return 0, errors.Errorf("%q is not a valid uid", id)
	}
	return uid, nil
}

// FormatUID renders uid the way Dgraph does.
func FormatUID(uid uint64) string {
	return fmt.Sprintf("%#x", uid)
}

func (s *Store) query(ctx context.Context, q string,
	vars map[string]string) ([]*store.User, error) {

	resp, err := s.client.Query(ctx, q, vars)
	if err != nil {
		return nil, errors.Wrap(err, "Dgraph query failed")
	}
	var decode struct {
		Users []*node `json:"users"`
	}
	if err := json.Unmarshal(resp, &decode); err != nil {
		return nil, errors.Wrap(err, "while decoding Dgraph response")
	}
	users := make([]*store.User, 0, len(decode.Users))
	for _, n := range decode.Users {
		users = append(users, n.user())
	}
	return users, nil
}

func (s *Store) Get(ctx context.Context, id string) (*store.User, error) {
	uid, err := ParseUID(id)
	if err != nil {
		return nil, err
	}
	users, err := s.query(ctx, getQuery, map[string]string{"$id": FormatUID(uid)})
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return users[0], nil
}

func (s *Store) List(ctx context.Context) ([]*store.User, error) {
	return s.query(ctx, listQuery, nil)
}

func (s *Store) mutate(ctx context.Context, set *node, del []byte) (map[string]string, error) {
	mu := &api.Mutation{DelNquads: del}
	if set != nil {
		js, err := json.Marshal(set)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't marshal mutation")
		}
		mu.SetJson = js
	}
	uids, err := s.client.Mutate(ctx, mu)
	return uids, errors.Wrap(err, "couldn't execute mutation")
}

func (s *Store) Create(ctx context.Context, name, email string) (*store.User, error) {
	uids, err := s.mutate(ctx, &node{
		UID:   "_:" + newUserBlank,
		Name:  &name,
		Email: &email,
		Type:  []string{"User"},
	}, nil)
	if err != nil {
		return nil, err
	}
	uid, ok := uids[newUserBlank]
	if !ok {
		return nil, errors.New("Dgraph did not assign a uid to the new user")
	}
	return &store.User{ID: uid, Name: name, Email: email}, nil
}

// Update reads the user then writes the patch in a second round trip, so a
// concurrent delete in between can bring the user back.
func (s *Store) Update(ctx context.Context, id string, p store.Patch) (*store.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	if p.IsEmpty() {
		return u, nil
	}
	if _, err := s.mutate(ctx, &node{UID: u.ID, Name: p.Name, Email: p.Email}, nil); err != nil {
		return nil, err
	}
	p.Apply(u)
	return u, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	u, err := s.Get(ctx, id)
	if err != nil || u == nil {
		return false, err
	}
	// Removes the node's outgoing edges, which is all a User has.
	if _, err := s.mutate(ctx, nil, []byte(fmt.Sprintf("<%s> * * .", u.ID))); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}
