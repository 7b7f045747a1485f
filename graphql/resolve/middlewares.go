/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"context"
	"time"

	"github.com/golang/glog"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	otrace "go.opencensus.io/trace"

	"github.com/hypermodeinc/usergraph/graphql/api"
	"github.com/hypermodeinc/usergraph/graphql/schema"
	"github.com/hypermodeinc/usergraph/x"
)

// QueryMiddleware represents a middleware for queries
type QueryMiddleware func(resolver QueryResolver) QueryResolver

// MutationMiddleware represents a middleware for mutations
type MutationMiddleware func(resolver MutationResolver) MutationResolver

// QueryMiddlewares represents a list of middlewares for queries, that get applied in the order
// they are present in the list.
// Inspired from: https://github.com/justinas/alice
type QueryMiddlewares []QueryMiddleware

// MutationMiddlewares represents a list of middlewares for mutations, that get applied in the order
// they are present in the list.
// Inspired from: https://github.com/justinas/alice
type MutationMiddlewares []MutationMiddleware

// Then chains the middlewares and returns the final QueryResolver.
//
//	QueryMiddlewares{m1, m2, m3}.Then(r)
//
// is equivalent to:
//
//	m1(m2(m3(r)))
//
// When the request comes in, it will be passed to m1, then m2, then m3
// and finally, the given resolverFunc
// (assuming every middleware calls the following one).
//
// A chain can be safely reused by calling Then() several times.
//
//	commonMiddlewares := QueryMiddlewares{m1, m2}
//	r1 := commonMiddlewares.Then(resolver1)
//	r2 := commonMiddlewares.Then(resolver2)
//
// Note that middlewares are called on every call to Then()
// and thus several instances of the same middleware will be created
// when a chain is reused in this way.
// For proper middleware, this should cause no problems.
//
// Then() treats nil as a QueryResolverFunc that resolves to &Resolved{Field: query}
func (mws QueryMiddlewares) Then(resolver QueryResolver) QueryResolver {
	if len(mws) == 0 {
		return resolver
	}
	if resolver == nil {
		resolver = QueryResolverFunc(func(ctx context.Context, query schema.Query) *Resolved {
			return &Resolved{Field: query}
		})
	}
	for i := len(mws) - 1; i >= 0; i-- {
		resolver = mws[i](resolver)
	}
	return resolver
}

// Then chains the middlewares and returns the final MutationResolver.
//
//	MutationMiddlewares{m1, m2, m3}.Then(r)
//
// is equivalent to:
//
//	m1(m2(m3(r)))
//
// Then() treats nil as a MutationResolverFunc that resolves to
// (&Resolved{Field: mutation}, true)
func (mws MutationMiddlewares) Then(resolver MutationResolver) MutationResolver {
	if len(mws) == 0 {
		return resolver
	}
	if resolver == nil {
		resolver = MutationResolverFunc(func(ctx context.Context,
			mutation schema.Mutation) (*Resolved, bool) {
			return &Resolved{Field: mutation}, true
		})
	}
	for i := len(mws) - 1; i >= 0; i-- {
		resolver = mws[i](resolver)
	}
	return resolver
}

// QueryTracing wraps a query in a span and records its count and latency.
func QueryTracing(resolver QueryResolver) QueryResolver {
	return QueryResolverFunc(func(ctx context.Context, query schema.Query) *Resolved {
		ctx, span := otrace.StartSpan(ctx, "query."+query.Name())
		defer span.End()
		ctx = x.WithMethod(ctx, query.Name())

		start := time.Now()
		resolved := resolver.Resolve(ctx, query)
		record(ctx, x.NumQueries, start, resolved != nil && resolved.Err != nil)
		return resolved
	})
}

// MutationTracing wraps a mutation in a span and records its count and latency.
func MutationTracing(resolver MutationResolver) MutationResolver {
	return MutationResolverFunc(func(ctx context.Context,
		mutation schema.Mutation) (*Resolved, bool) {
		ctx, span := otrace.StartSpan(ctx, "mutation."+mutation.Name())
		defer span.End()
		ctx = x.WithMethod(ctx, mutation.Name())

		start := time.Now()
		resolved, success := resolver.Resolve(ctx, mutation)
		record(ctx, x.NumMutations, start, !success)
		return resolved, success
	})
}

func record(ctx context.Context, count *stats.Int64Measure, start time.Time, failed bool) {
	status := x.TagValueStatusOK
	if failed {
		status = x.TagValueStatusError
	}
	if err := stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(x.KeyStatus, status)},
		count.M(1), x.LatencyMs.M(x.SinceMs(start))); err != nil {
		glog.Warningf("Error while recording metrics: %v", err)
	}
}

// QueryLogging logs each query field and its outcome at verbosity 2.
func QueryLogging(resolver QueryResolver) QueryResolver {
	return QueryResolverFunc(func(ctx context.Context, query schema.Query) *Resolved {
		resolved := resolver.Resolve(ctx, query)
		if glog.V(2) {
			if resolved != nil && resolved.Err != nil {
				glog.Infof("[%s] query %s failed: %v", api.RequestID(ctx), query.ResponseName(),
					resolved.Err)
			} else {
				glog.Infof("[%s] query %s resolved", api.RequestID(ctx), query.ResponseName())
			}
		}
		return resolved
	})
}

// MutationLogging logs each mutation field and its outcome at verbosity 2.
func MutationLogging(resolver MutationResolver) MutationResolver {
	return MutationResolverFunc(func(ctx context.Context,
		mutation schema.Mutation) (*Resolved, bool) {
		resolved, success := resolver.Resolve(ctx, mutation)
		if glog.V(2) {
			if !success {
				var err error
				if resolved != nil {
					err = resolved.Err
				}
				glog.Infof("[%s] mutation %s failed: %v", api.RequestID(ctx),
					mutation.ResponseName(), err)
			} else {
				glog.Infof("[%s] mutation %s resolved", api.RequestID(ctx),
					mutation.ResponseName())
			}
		}
		return resolved, success
	})
}

// MutationAudit returns a middleware that writes an audit record for every
// mutation to log.  A nil log audits nothing.
func MutationAudit(log *x.Logger) MutationMiddleware {
	return func(resolver MutationResolver) MutationResolver {
		return MutationResolverFunc(func(ctx context.Context,
			mutation schema.Mutation) (*Resolved, bool) {
			resolved, success := resolver.Resolve(ctx, mutation)

			args := []interface{}{
				"request_id", api.RequestID(ctx),
				"mutation", mutation.Name(),
			}
			if id, err := mutation.IDArgValue(); err == nil && id != "" {
				args = append(args, "id", id)
			}
			if success {
				log.AuditI("mutation", args...)
			} else {
				if resolved != nil && resolved.Err != nil {
					args = append(args, "error", resolved.Err.Error())
				}
				log.AuditE("mutation", args...)
			}
			return resolved, success
		})
	}
}

// DefaultQueryMiddlewares are applied to every query the User resolvers answer.
func DefaultQueryMiddlewares() QueryMiddlewares {
	return QueryMiddlewares{QueryTracing, QueryLogging}
}

// DefaultMutationMiddlewares are applied to every mutation the User resolvers
// answer.  Audit records go to audit, which may be nil.
func DefaultMutationMiddlewares(audit *x.Logger) MutationMiddlewares {
	return MutationMiddlewares{MutationTracing, MutationLogging, MutationAudit(audit)}
}
