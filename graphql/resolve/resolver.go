/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	otrace "go.opencensus.io/trace"

	"github.com/hypermodeinc/usergraph/graphql/api"
	"github.com/hypermodeinc/usergraph/graphql/schema"
	"github.com/hypermodeinc/usergraph/store"
	"github.com/hypermodeinc/usergraph/x"
)

const (
	methodResolve = "RequestResolver.Resolve"

	resolverFailed    = false
	resolverSucceeded = true

	// errMistyped is reported when a resolver's value doesn't have the shape of
	// the field it resolves.  The value is completed as null instead.
	errMistyped = "Field '%s' (type %s) was resolved to %s, which doesn't fit its type.  " +
		"The resolver and the User schema disagree.  The value was resolved as null."

	errInternal = "Internal error"

	errMutationNotPOST = "Can only perform a mutation operation from a POST request."

	errExpectedNonNull = "Non-nullable field '%s' (type %s) was not present in the result.  " +
		"GraphQL error propagation triggered."
)

// A ResolverFactory finds the right resolver for a query/mutation.
type ResolverFactory interface {
	queryResolverFor(query schema.Query) QueryResolver
	mutationResolverFor(mutation schema.Mutation) MutationResolver

	// WithQueryResolver adds a new query resolver.  Each time query qt is resolved
	// resolver is called to create a new instance of a QueryResolver to resolve the
	// query.
	WithQueryResolver(qt schema.QueryType,
		resolver func(schema.Query) QueryResolver) ResolverFactory

	// WithMutationResolver adds a new mutation resolver.  Each time mutation mt is
	// resolved resolver is called to create a new instance of a MutationResolver to
	// resolve the mutation.
	WithMutationResolver(mt schema.MutationType,
		resolver func(schema.Mutation) MutationResolver) ResolverFactory

	// WithUserResolvers binds the User queries and mutations to resolvers backed
	// by st.
	WithUserResolvers(st store.Store) ResolverFactory

	// WithQueryMiddlewareConfig adds the configuration to use to apply middlewares
	// before resolving queries. The config should be a mapping of the query to its
	// middlewares.
	WithQueryMiddlewareConfig(config map[schema.QueryType]QueryMiddlewares) ResolverFactory

	// WithMutationMiddlewareConfig adds the configuration to use to apply middlewares
	// before resolving mutations. The config should be a mapping of the mutation to
	// its middlewares.
	WithMutationMiddlewareConfig(
		config map[schema.MutationType]MutationMiddlewares) ResolverFactory

	// WithSchemaIntrospection adds schema introspection capabilities to the factory.
	// So __schema, __type and __typename can be resolved.
	WithSchemaIntrospection() ResolverFactory

	// Check reports an error if a root field of s has no resolver, or if a
	// resolver is bound to a field s doesn't have.
	Check(s schema.Schema) error
}

// RequestResolver can process GraphQL requests and write GraphQL JSON responses.
// A schema.Request may contain any number of queries or mutations (never both).
// RequestResolver.Resolve() resolves all of them by finding the resolved answers
// of the component queries/mutations and joining into a single schema.Response.
type RequestResolver struct {
	schema    schema.Schema
	resolvers ResolverFactory
}

// A resolverFactory is the main implementation of ResolverFactory.  It stores a
// map of all the resolvers that have been registered and returns a resolver that
// just returns errors if it's asked for a resolver for a field that it doesn't
// know about.
type resolverFactory struct {
	queryResolvers    map[schema.QueryType]func(schema.Query) QueryResolver
	mutationResolvers map[schema.MutationType]func(schema.Mutation) MutationResolver

	queryMiddlewareConfig    map[schema.QueryType]QueryMiddlewares
	mutationMiddlewareConfig map[schema.MutationType]MutationMiddlewares

	// returned if the factory gets asked for resolver for a field that it doesn't
	// know about.
	queryError    QueryResolverFunc
	mutationError MutationResolverFunc
}

// A Resolved is the result of resolving a single field - generally a query or mutation.
// Data is the field's value: nil, a scalar, a map[string]interface{} keyed by
// field name for an object, or a []interface{} for a list.
type Resolved struct {
	Data  interface{}
	Field schema.Field
	Err   error
}

func (rf *resolverFactory) WithQueryResolver(
	qt schema.QueryType, resolver func(schema.Query) QueryResolver) ResolverFactory {
	rf.queryResolvers[qt] = resolver
	return rf
}

func (rf *resolverFactory) WithMutationResolver(
	mt schema.MutationType, resolver func(schema.Mutation) MutationResolver) ResolverFactory {
	rf.mutationResolvers[mt] = resolver
	return rf
}

func (rf *resolverFactory) WithSchemaIntrospection() ResolverFactory {
	introspect := func(q schema.Query) QueryResolver {
		return QueryResolverFunc(resolveIntrospection)
	}
	return rf.
		WithQueryResolver(schema.SchemaQuery, introspect).
		WithQueryResolver(schema.TypeQuery, introspect).
		WithQueryResolver(schema.TypenameQuery, introspect).
		WithMutationResolver(schema.TypenameMutation,
			func(m schema.Mutation) MutationResolver {
				return MutationResolverFunc(resolveMutationTypename)
			})
}

func (rf *resolverFactory) WithUserResolvers(st store.Store) ResolverFactory {
	return rf.
		WithQueryResolver(schema.GetUserQuery, func(q schema.Query) QueryResolver {
			return &getUserResolver{store: st}
		}).
		WithQueryResolver(schema.GetUsersQuery, func(q schema.Query) QueryResolver {
			return &getUsersResolver{store: st}
		}).
		WithMutationResolver(schema.CreateUserMutation,
			func(m schema.Mutation) MutationResolver {
				return &createUserResolver{store: st}
			}).
		WithMutationResolver(schema.UpdateUserMutation,
			func(m schema.Mutation) MutationResolver {
				return &updateUserResolver{store: st}
			}).
		WithMutationResolver(schema.DeleteUserMutation,
			func(m schema.Mutation) MutationResolver {
				return &deleteUserResolver{store: st}
			})
}

func (rf *resolverFactory) WithQueryMiddlewareConfig(
	config map[schema.QueryType]QueryMiddlewares) ResolverFactory {
	if len(config) != 0 {
		rf.queryMiddlewareConfig = config
	}
	return rf
}

func (rf *resolverFactory) WithMutationMiddlewareConfig(
	config map[schema.MutationType]MutationMiddlewares) ResolverFactory {
	if len(config) != 0 {
		rf.mutationMiddlewareConfig = config
	}
	return rf
}

func (rf *resolverFactory) Check(s schema.Schema) error {
	var problems []string

	queries := make(map[string]bool)
	for _, q := range s.Queries() {
		queries[q] = true
		if _, ok := rf.queryResolvers[schema.QueryType(q)]; !ok {
			problems = append(problems, "query "+q+" has no resolver")
		}
	}
	for qt := range rf.queryResolvers {
		if !queries[string(qt)] && !strings.HasPrefix(string(qt), "__") {
			problems = append(problems, "resolver bound to unknown query "+string(qt))
		}
	}

	mutations := make(map[string]bool)
	for _, m := range s.Mutations() {
		mutations[m] = true
		if _, ok := rf.mutationResolvers[schema.MutationType(m)]; !ok {
			problems = append(problems, "mutation "+m+" has no resolver")
		}
	}
	for mt := range rf.mutationResolvers {
		if !mutations[string(mt)] && !strings.HasPrefix(string(mt), "__") {
			problems = append(problems, "resolver bound to unknown mutation "+string(mt))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.Errorf("schema and resolvers don't match: %s", strings.Join(problems, "; "))
}

// NewResolverFactory returns a ResolverFactory with no resolvers bound.  If the
// factory gets asked to resolve a query/mutation it has no resolver for, it uses
// queryError/mutationError to build an error result.  Nil values get a default
// that reports the field as not supported.
func NewResolverFactory(
	queryError QueryResolverFunc, mutationError MutationResolverFunc) ResolverFactory {

	if queryError == nil {
		queryError = func(ctx context.Context, query schema.Query) *Resolved {
			return EmptyResult(query,
				errors.Errorf("%s was not executed because it isn't supported", query.Name()))
		}
	}
	if mutationError == nil {
		mutationError = func(ctx context.Context, m schema.Mutation) (*Resolved, bool) {
			return EmptyResult(m,
				errors.Errorf("%s was not executed because it isn't supported", m.Name())),
				resolverFailed
		}
	}

	return &resolverFactory{
		queryResolvers:    make(map[schema.QueryType]func(schema.Query) QueryResolver),
		mutationResolvers: make(map[schema.MutationType]func(schema.Mutation) MutationResolver),

		queryMiddlewareConfig:    make(map[schema.QueryType]QueryMiddlewares),
		mutationMiddlewareConfig: make(map[schema.MutationType]MutationMiddlewares),

		queryError:    queryError,
		mutationError: mutationError,
	}
}

func (rf *resolverFactory) queryResolverFor(query schema.Query) QueryResolver {
	mws := rf.queryMiddlewareConfig[query.QueryType()]
	if resolver, ok := rf.queryResolvers[query.QueryType()]; ok {
		return mws.Then(resolver(query))
	}

	return rf.queryError
}

func (rf *resolverFactory) mutationResolverFor(mutation schema.Mutation) MutationResolver {
	mws := rf.mutationMiddlewareConfig[mutation.MutationType()]
	if resolver, ok := rf.mutationResolvers[mutation.MutationType()]; ok {
		return mws.Then(resolver(mutation))
	}

	return rf.mutationError
}

// New creates a new RequestResolver.
func New(s schema.Schema, resolverFactory ResolverFactory) *RequestResolver {
	return &RequestResolver{
		schema:    s,
		resolvers: resolverFactory,
	}
}

// Resolve processes gqlReq and returns a GraphQL response.
// Resolve records any errors in the response's error field.
func (r *RequestResolver) Resolve(ctx context.Context, gqlReq *schema.Request) *schema.Response {
	span := otrace.FromContext(ctx)
	stop := x.SpanTimer(span, methodResolve)
	defer stop()

	if r == nil {
		glog.Errorf("Call to Resolve with nil RequestResolver")
		return schema.ErrorResponse(errors.New(errInternal))
	}

	if r.schema == nil {
		glog.Errorf("Call to Resolve with no schema")
		return schema.ErrorResponse(errors.New(errInternal))
	}

	resp := &schema.Response{}
	resp.SetRequestID(api.RequestID(ctx))

	op, err := r.schema.Operation(gqlReq)
	if err != nil {
		resp.WithError(err)
		return resp
	}

	if gqlReq.ReadOnly && op.IsMutation() {
		resp.WithError(x.GqlErrorf(errMutationNotPOST))
		return resp
	}

	if glog.V(3) {
		// don't log the introspection queries they are sent too frequently
		// by GraphQL dev tools
		qs := op.Queries()
		if !op.IsQuery() || len(qs) == 0 || !strings.HasPrefix(qs[0].Name(), "__") {
			b, err := json.Marshal(gqlReq.Variables)
			if err != nil {
				glog.Infof("Failed to marshal variables for logging : %s", err)
			}
			glog.Infof("[%s] Resolving GQL request: \n%s\nWith Variables: \n%s\n",
				api.RequestID(ctx), gqlReq.Query, string(b))
		}
	}

	// A single request can contain either queries or mutations - not both.
	// GraphQL validation on the request would have caught that error case
	// before we get here.
	switch {
	case op.IsQuery():
		// Queries run in parallel and are independent of each other: e.g.
		// an error in one query, doesn't affect the others.
		queries := op.Queries()
		allResolved := make([]*Resolved, len(queries))

		var wg sync.WaitGroup
		for i, q := range queries {
			wg.Add(1)

			go func(q schema.Query, storeAt int) {
				defer wg.Done()
				defer api.PanicHandler(ctx,
					func(err error) {
						allResolved[storeAt] = &Resolved{
							Data:  nil,
							Field: q,
							Err:   schema.GQLWrapLocationf(err, q.Location(), "resolving %s failed", q.Name()),
						}
					}, gqlReq.Query)
				allResolved[storeAt] = r.resolvers.queryResolverFor(q).Resolve(ctx, q)
			}(q, i)
		}
		wg.Wait()

		// The GraphQL data response needs to be written in the same order as the
		// queries in the request.
		for _, res := range allResolved {
			// Errors and data in the same response is valid.  Both WithError and
			// AddData handle nil cases.
			addResult(resp, res)
		}
	case op.IsMutation():
		// A mutation operation can contain any number of mutation fields.  Those should be
		// executed serially.
		// (spec https://graphql.github.io/graphql-spec/June2018/#sec-Normal-and-Serial-Execution)
		//
		// A list of mutations stops after the first error, and the remaining mutations
		// are reported as not executed.
		allSuccessful := true

		for _, m := range op.Mutations() {
			if !allSuccessful {
				resp.WithError(x.GqlErrorf(
					"Mutation %s was not executed because of a previous error.",
					m.ResponseName()).
					WithLocations(m.Location()))
				resp.AddData([]byte(`{"` + m.ResponseName() + `": null}`))
				continue
			}

			var res *Resolved
			res, allSuccessful = r.resolveMutation(ctx, m, gqlReq.Query)
			addResult(resp, res)
		}
	}

	return resp
}

func (r *RequestResolver) resolveMutation(ctx context.Context, m schema.Mutation,
	query string) (res *Resolved, success bool) {

	defer api.PanicHandler(ctx,
		func(err error) {
			res = &Resolved{
				Data:  nil,
				Field: m,
				Err:   schema.GQLWrapLocationf(err, m.Location(), "resolving %s failed", m.Name()),
			}
			success = resolverFailed
		}, query)

	return r.resolvers.mutationResolverFor(m).Resolve(ctx, m)
}

func addResult(resp *schema.Response, res *Resolved) {
	// Errors should report the "path" into the result where the error was found.
	//
	// The definition of a path in a GraphQL error is here:
	// https://graphql.github.io/graphql-spec/June2018/#sec-Errors
	// For a query like (assuming field f is of a list type and g is a scalar type):
	// - q { f { g } }
	// a path to the 2nd item in the f list would look like:
	// - [ "q", "f", 2, "g" ]
	path := make([]interface{}, 0, maxPathLength(res.Field))

	b, gqlErr := completeObject(path, []schema.Field{res.Field},
		map[string]interface{}{res.Field.Name(): res.Data})
	if b == nil {
		b = []byte(`{"` + res.Field.ResponseName() + `": null}`)
	}

	resp.WithError(schema.SetPathIfEmpty(res.Err, res.Field.ResponseName()))
	resp.WithError(gqlErr)
	resp.AddData(b)
}

// Once a result has been returned from a resolver, that result needs to be worked
// through for two main reasons:
//
// 1) (selection)
//    A resolver returns the whole of an object, but GraphQL wants exactly the
//    fields that were asked for, under their response names and in the order of
//    the query.
//
// 2) (error propagation)
//    The schema is a contract with consumers.  So if there's an `f: T!` in the
//    schema, that says: "this API never returns a null f".  If f turned out null
//    in the results, then returning null would break the contract.  GraphQL specifies
//    a set of rules about how to propagate and record those errors.
//
//    The basic intuition is that if we asked for something that's nullable and we
//    got back a null/error, then that's fine, just set it to null.  But if we asked
//    for something non-nullable and got a null/error, then the object we are building
//    is in an error state, and we should propagate that up to it's parent, and so
//    on, until we reach a nullable field, or the top level.
//
// The completeXYZ() functions below essentially covers the value completion alg from
// https://graphql.github.io/graphql-spec/June2018/#sec-Value-Completion.
// see also: error propagation
// https://graphql.github.io/graphql-spec/June2018/#sec-Errors-and-Non-Nullability
//
// There's three basic types to consider here: GraphQL object types (equals json
// objects in the result), list types (equals lists of objects or scalars), and
// values (either scalar values, lists or objects).  So the algorithm is a three
// way mutual recursion between those types.

// completeObject builds a json GraphQL result object for the current query level.
// It returns a bracketed json object like { f1:..., f2:..., ... }.
//
// fields are the fields needed from the current level of the result, res is the
// value of the object, keyed by field name.  Fields are written in query order,
// under their response names.
func completeObject(
	path []interface{},
	fields []schema.Field,
	res map[string]interface{}) ([]byte, x.GqlErrorList) {

	var errs x.GqlErrorList
	var buf bytes.Buffer
	comma := ""

	x.Check2(buf.WriteRune('{'))
	for _, f := range fields {
		x.Check2(buf.WriteString(comma))
		x.Check2(buf.WriteRune('"'))
		x.Check2(buf.WriteString(f.ResponseName()))
		x.Check2(buf.WriteString(`": `))

		val := res[f.Name()]
		if f.Name() == schema.Typename {
			// From GraphQL spec:
			// https://graphql.github.io/graphql-spec/June2018/#sec-Type-Name-Introspection
			// "GraphQL supports type name introspection at any point within a query by the
			// meta‐field  __typename: String! when querying against any Object, Interface,
			// or Union. It returns the name of the object type currently being queried."
			val = f.ObjectName()
		}

		completed, err := completeValue(append(path, f.ResponseName()), f, val)
		errs = append(errs, err...)
		if completed == nil {
			if !f.Type().Nullable() {
				return nil, errs
			}
			completed = []byte(`null`)
		}
		x.Check2(buf.Write(completed))
		comma = ", "
	}
	x.Check2(buf.WriteRune('}'))

	return buf.Bytes(), errs
}

// completeValue applies the value completion algorithm to a single value, which
// could turn out to be a list or object or scalar value.
func completeValue(
	path []interface{},
	field schema.Field,
	val interface{}) ([]byte, x.GqlErrorList) {

	switch val := val.(type) {
	case map[string]interface{}:
		if field.Type().ListType() != nil || len(field.SelectionSet()) == 0 {
			return mistyped(path, field, "an object")
		}
		return completeObject(path, field.SelectionSet(), val)
	case []interface{}:
		return completeList(path, field, val)
	default:
		if val == nil {
			if field.Type().Nullable() {
				return []byte("null"), nil
			}

			gqlErr := x.GqlErrorf(errExpectedNonNull, field.Name(), field.Type()).
				WithLocations(field.Location())
			gqlErr.Path = copyPath(path)
			return nil, x.GqlErrorList{gqlErr}
		}

		if field.Type().ListType() != nil || len(field.SelectionSet()) > 0 {
			return mistyped(path, field, "a scalar")
		}

		b, err := json.Marshal(val)
		if err != nil {
			return mistyped(path, field, "a value that can't be written as JSON")
		}

		return b, nil
	}
}

// completeList applies the completion algorithm to a list field and result.
func completeList(
	path []interface{},
	field schema.Field,
	values []interface{}) ([]byte, x.GqlErrorList) {

	var buf bytes.Buffer
	var errs x.GqlErrorList
	comma := ""

	if field.Type().ListType() == nil {
		return mistyped(path, field, "a list")
	}

	x.Check2(buf.WriteRune('['))
	for i, b := range values {
		r, err := completeValue(append(path, i), listElem{field}, b)
		errs = append(errs, err...)
		x.Check2(buf.WriteString(comma))
		if r == nil {
			if !field.Type().ListType().Nullable() {
				// The spec explicitly calls out:
				//  "If a List type wraps a Non-Null type, and one of the
				//  elements of that list resolves to null, then the entire list
				//  must resolve to null."
				//
				// The list gets reduced to nil, but an error recording that must
				// already be in errs.
				return nil, errs
			}
			x.Check2(buf.WriteString("null"))
		} else {
			x.Check2(buf.Write(r))
		}
		comma = ", "
	}
	x.Check2(buf.WriteRune(']'))

	return buf.Bytes(), errs
}

// listElem is a list field seen as one of its items.
type listElem struct {
	schema.Field
}

func (le listElem) Type() schema.Type {
	return le.Field.Type().ListType()
}

// mistyped completes field as null, recording that its resolver produced a
// value of the wrong kind.
func mistyped(path []interface{}, field schema.Field, got string) ([]byte, x.GqlErrorList) {
	glog.Errorf("Resolving %s (line %d, column %d) produced %s for type %s",
		field.Name(), field.Location().Line, field.Location().Column, got, field.Type())

	gqlErr := x.GqlErrorf(errMistyped, field.Name(), field.Type(), got).
		WithLocations(field.Location())
	gqlErr.Path = copyPath(path)

	val, errs := completeValue(path, field, nil)
	return val, append(errs, gqlErr)
}

func copyPath(path []interface{}) []interface{} {
	result := make([]interface{}, len(path))
	copy(result, path)
	return result
}

// maxPathLength finds the max length (including list indexes) of any path in the 'query' f.
// Used to pre-allocate a path buffer of the correct size before running completeObject on
// the top level query - means that we aren't reallocating slices multiple times
// during the complete* functions.
func maxPathLength(f schema.Field) int {
	childMax := 0
	for _, chld := range f.SelectionSet() {
		d := maxPathLength(chld)
		if d > childMax {
			childMax = d
		}
	}
	if f.Type().ListType() != nil {
		// It's f: [...], so add a space for field name and
		// a space for the index into the list
		return 2 + childMax
	}

	return 1 + childMax
}

// EmptyResult is a Resolved for f with a null value and err, located at f.
func EmptyResult(f schema.Field, err error) *Resolved {
	return &Resolved{
		Data:  nil,
		Field: f,
		Err:   schema.GQLWrapLocationf(err, f.Location(), "resolving %s failed", f.Name()),
	}
}
