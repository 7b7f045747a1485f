/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"context"

	otrace "go.opencensus.io/trace"

	"github.com/hypermodeinc/usergraph/graphql/schema"
	"github.com/hypermodeinc/usergraph/store"
	"github.com/hypermodeinc/usergraph/x"
)

// A QueryResolver can resolve a single query.
type QueryResolver interface {
	Resolve(ctx context.Context, query schema.Query) *Resolved
}

// QueryResolverFunc is an adapter that allows to build a QueryResolver from
// a function.  Based on the http.HandlerFunc pattern.
type QueryResolverFunc func(ctx context.Context, query schema.Query) *Resolved

// Resolve calls qr(ctx, query)
func (qr QueryResolverFunc) Resolve(ctx context.Context, query schema.Query) *Resolved {
	return qr(ctx, query)
}

// getUserResolver answers getUser(id) from a store.
type getUserResolver struct {
	store store.Store
}

func (gr *getUserResolver) Resolve(ctx context.Context, query schema.Query) *Resolved {
	span := otrace.FromContext(ctx)
	stop := x.SpanTimer(span, "resolveGetUser")
	defer stop()

	id, err := query.IDArgValue()
	if err != nil {
		return EmptyResult(query, err)
	}

	u, err := gr.store.Get(ctx, id)
	if err != nil {
		return EmptyResult(query, err)
	}
	return &Resolved{Data: userValue(u), Field: query}
}

// getUsersResolver answers getUsers from a store.
type getUsersResolver struct {
	store store.Store
}

func (gr *getUsersResolver) Resolve(ctx context.Context, query schema.Query) *Resolved {
	span := otrace.FromContext(ctx)
	stop := x.SpanTimer(span, "resolveGetUsers")
	defer stop()

	users, err := gr.store.List(ctx)
	if err != nil {
		return EmptyResult(query, err)
	}

	// An empty store is an empty list, never null.
	data := make([]interface{}, 0, len(users))
	for _, u := range users {
		data = append(data, userValue(u))
	}
	return &Resolved{Data: data, Field: query}
}

func resolveIntrospection(ctx context.Context, q schema.Query) *Resolved {
	data, err := schema.Introspect(q)
	if err != nil {
		return EmptyResult(q, err)
	}
	return &Resolved{Data: data, Field: q}
}

// userValue is u as a resolver result.  A nil user is a null result.
func userValue(u *store.User) interface{} {
	if u == nil {
		return nil
	}
	return map[string]interface{}{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
	}
}
