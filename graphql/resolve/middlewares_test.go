/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"

	"github.com/hypermodeinc/usergraph/graphql/api"
	"github.com/hypermodeinc/usergraph/graphql/schema"
	"github.com/hypermodeinc/usergraph/store/memstore"
	"github.com/hypermodeinc/usergraph/x"
)

func TestQueryMiddlewares_Then_ExecutesMiddlewaresInOrder(t *testing.T) {
	array := make([]int, 0)
	addToArray := func(num int) {
		array = append(array, num)
	}
	m1 := QueryMiddleware(func(resolver QueryResolver) QueryResolver {
		return QueryResolverFunc(func(ctx context.Context, query schema.Query) *Resolved {
			addToArray(1)
			defer addToArray(5)
			return resolver.Resolve(ctx, query)
		})
	})
	m2 := QueryMiddleware(func(resolver QueryResolver) QueryResolver {
		return QueryResolverFunc(func(ctx context.Context, query schema.Query) *Resolved {
			addToArray(2)
			resolved := resolver.Resolve(ctx, query)
			addToArray(4)
			return resolved
		})
	})
	mws := QueryMiddlewares{m1, m2}

	resolver := mws.Then(QueryResolverFunc(func(ctx context.Context, query schema.Query) *Resolved {
		addToArray(3)
		return &Resolved{
			Field: query,
			Data:  "done",
		}
	}))
	resolved := resolver.Resolve(context.Background(), nil)

	require.Equal(t, &Resolved{Data: "done"}, resolved)
	require.Equal(t, []int{1, 2, 3, 4, 5}, array)
}

func TestMutationMiddlewares_Then_ExecutesMiddlewaresInOrder(t *testing.T) {
	array := make([]int, 0)
	addToArray := func(num int) {
		array = append(array, num)
	}
	m1 := MutationMiddleware(func(resolver MutationResolver) MutationResolver {
		return MutationResolverFunc(func(ctx context.Context, mutation schema.Mutation) (*Resolved, bool) {
			addToArray(1)
			defer addToArray(5)
			return resolver.Resolve(ctx, mutation)
		})
	})
	m2 := MutationMiddleware(func(resolver MutationResolver) MutationResolver {
		return MutationResolverFunc(func(ctx context.Context,
			mutation schema.Mutation) (*Resolved, bool) {
			addToArray(2)
			resolved, success := resolver.Resolve(ctx, mutation)
			addToArray(4)
			return resolved, success
		})
	})
	mws := MutationMiddlewares{m1, m2}

	resolver := mws.Then(MutationResolverFunc(func(ctx context.Context, mutation schema.Mutation) (*Resolved, bool) {
		addToArray(3)
		return &Resolved{
			Field: mutation,
			Data:  "done",
		}, true
	}))
	resolved, succeeded := resolver.Resolve(context.Background(), nil)

	require.True(t, succeeded)
	require.Equal(t, &Resolved{Data: "done"}, resolved)
	require.Equal(t, []int{1, 2, 3, 4, 5}, array)
}

func TestMiddlewares_Then_Empty(t *testing.T) {
	qr := QueryResolverFunc(func(ctx context.Context, query schema.Query) *Resolved {
		return &Resolved{Data: 1}
	})
	require.Equal(t, &Resolved{Data: 1}, QueryMiddlewares(nil).Then(qr).Resolve(context.Background(), nil))

	passThrough := QueryMiddleware(func(r QueryResolver) QueryResolver { return r })
	require.Equal(t, &Resolved{}, QueryMiddlewares{passThrough}.Then(nil).
		Resolve(context.Background(), nil))
}

func TestMutationAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	audit, err := x.InitLogger(path)
	require.NoError(t, err)

	st := memstore.NewSeeded(memstore.Monotonic)
	s := userSchema(t)
	mws := map[schema.MutationType]MutationMiddlewares{
		schema.DeleteUserMutation: DefaultMutationMiddlewares(audit),
	}
	rf := NewResolverFactory(nil, nil).
		WithUserResolvers(st).
		WithMutationMiddlewareConfig(mws)
	r := New(s, rf)

	ctx := api.WithRequestID(context.Background(), "audit-req")
	resp := r.Resolve(ctx, request(t, `mutation { deleteUser(id: "2") }`, ""))
	require.Nil(t, resp.Errors)
	audit.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"request_id":"audit-req"`)
	require.Contains(t, string(b), `"mutation":"deleteUser"`)
	require.Contains(t, string(b), `"id":"2"`)
}

func TestMutationAudit_NilLogger(t *testing.T) {
	mw := MutationAudit(nil)
	resolver := mw(MutationResolverFunc(func(ctx context.Context,
		m schema.Mutation) (*Resolved, bool) {
		return &Resolved{Data: "ok"}, true
	}))

	s := userSchema(t)
	op, err := s.Operation(&schema.Request{Query: `mutation { deleteUser(id: "1") }`})
	require.NoError(t, err)

	res, ok := resolver.Resolve(context.Background(), op.Mutations()[0])
	require.True(t, ok)
	require.Equal(t, "ok", res.Data)
}

func TestTracingRecordsMetrics(t *testing.T) {
	require.NoError(t, x.RegisterExporters(http.NewServeMux(), "usergraph_test"))

	st := memstore.NewSeeded(memstore.Monotonic)
	rf := NewResolverFactory(nil, nil).
		WithUserResolvers(st).
		WithQueryMiddlewareConfig(map[schema.QueryType]QueryMiddlewares{
			schema.GetUserQuery: DefaultQueryMiddlewares(),
		})
	r := New(userSchema(t), rf)

	resp := r.Resolve(context.Background(), request(t, `{ getUser(id: "1") { name } }`, ""))
	require.Nil(t, resp.Errors)

	rows, err := view.RetrieveData(x.NumQueries.Name())
	require.NoError(t, err)

	found := false
	for _, row := range rows {
		tags := make(map[string]string)
		for _, tg := range row.Tags {
			tags[tg.Key.Name()] = tg.Value
		}
		if tags["method"] == "getUser" && tags["status"] == x.TagValueStatusOK {
			found = row.Data.(*view.CountData).Value >= 1
		}
	}
	require.True(t, found, "no getUser count recorded in %v", rows)
}
