/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"context"
	"fmt"

	otrace "go.opencensus.io/trace"

	"github.com/hypermodeinc/usergraph/graphql/schema"
	"github.com/hypermodeinc/usergraph/store"
	"github.com/hypermodeinc/usergraph/x"
)

const (
	deletedMsg  = "User with id %s deleted successfully."
	notFoundMsg = "User with id %s not found."
)

// MutationResolver can resolve a single GraphQL mutation field.  The bool
// reports whether it succeeded; later mutations in the same request only run
// if every earlier one did.
type MutationResolver interface {
	Resolve(ctx context.Context, mutation schema.Mutation) (*Resolved, bool)
}

// MutationResolverFunc is an adapter that allows to build a MutationResolver from
// a function.  Based on the http.HandlerFunc pattern.
type MutationResolverFunc func(ctx context.Context, m schema.Mutation) (*Resolved, bool)

// Resolve calls mr(ctx, mutation)
func (mr MutationResolverFunc) Resolve(ctx context.Context, m schema.Mutation) (*Resolved, bool) {
	return mr(ctx, m)
}

func failed(m schema.Mutation, err error) (*Resolved, bool) {
	return EmptyResult(m, err), resolverFailed
}

type createUserResolver struct {
	store store.Store
}

func (cr *createUserResolver) Resolve(ctx context.Context, m schema.Mutation) (*Resolved, bool) {
	span := otrace.FromContext(ctx)
	stop := x.SpanTimer(span, "resolveCreateUser")
	defer stop()

	// Both are non-null in the schema, so validation has already made sure
	// they're here.
	name, _ := m.StringArg(schema.NameArgName)
	email, _ := m.StringArg(schema.EmailArgName)

	u, err := cr.store.Create(ctx, name, email)
	if err != nil {
		return failed(m, err)
	}
	return &Resolved{Data: userValue(u), Field: m}, resolverSucceeded
}

type updateUserResolver struct {
	store store.Store
}

func (ur *updateUserResolver) Resolve(ctx context.Context, m schema.Mutation) (*Resolved, bool) {
	span := otrace.FromContext(ctx)
	stop := x.SpanTimer(span, "resolveUpdateUser")
	defer stop()

	id, err := m.IDArgValue()
	if err != nil {
		return failed(m, err)
	}

	// An argument given as null is the same as one left out.
	var patch store.Patch
	if name, ok := m.StringArg(schema.NameArgName); ok {
		patch.Name = &name
	}
	if email, ok := m.StringArg(schema.EmailArgName); ok {
		patch.Email = &email
	}

	u, err := ur.store.Update(ctx, id, patch)
	if err != nil {
		return failed(m, err)
	}
	return &Resolved{Data: userValue(u), Field: m}, resolverSucceeded
}

type deleteUserResolver struct {
	store store.Store
}

func (dr *deleteUserResolver) Resolve(ctx context.Context, m schema.Mutation) (*Resolved, bool) {
	span := otrace.FromContext(ctx)
	stop := x.SpanTimer(span, "resolveDeleteUser")
	defer stop()

	id, err := m.IDArgValue()
	if err != nil {
		return failed(m, err)
	}

	found, err := dr.store.Delete(ctx, id)
	if err != nil {
		return failed(m, err)
	}
	msg := fmt.Sprintf(notFoundMsg, id)
	if found {
		msg = fmt.Sprintf(deletedMsg, id)
	}
	return &Resolved{Data: msg, Field: m}, resolverSucceeded
}

func resolveMutationTypename(ctx context.Context, m schema.Mutation) (*Resolved, bool) {
	return &Resolved{Data: m.ObjectName(), Field: m}, resolverSucceeded
}
