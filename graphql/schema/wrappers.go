/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/spf13/cast"

	"github.com/hypermodeinc/usergraph/x"
)

// Wrap the github.com/dgraph-io/gqlparser/v2/ast definitions so that the resolvers
// depend on behaviours we expect from a GraphQL operation, but not on the exact
// structure of the parser's AST.
//
// This also hooks up the bookkeeping that's otherwise no fun.  E.g. getting values for
// field arguments requires the variable map from the operation, and selection sets
// need fragments expanded and @skip/@include applied.  Much nicer if that's done here.

// QueryType enumerates the root query fields.
type QueryType string

// MutationType enumerates the root mutation fields.
type MutationType string

const (
	GetUserQuery      QueryType = "getUser"
	GetUsersQuery     QueryType = "getUsers"
	SchemaQuery       QueryType = "__schema"
	TypeQuery         QueryType = "__type"
	TypenameQuery     QueryType = "__typename"
	NotSupportedQuery QueryType = "notsupported"

	CreateUserMutation   MutationType = "createUser"
	UpdateUserMutation   MutationType = "updateUser"
	DeleteUserMutation   MutationType = "deleteUser"
	TypenameMutation     MutationType = "__typename"
	NotSupportedMutation MutationType = "notsupported"

	IDArgName    = "id"
	NameArgName  = "name"
	EmailArgName = "email"

	Typename = "__typename"
)

var (
	queryTypes = map[string]QueryType{
		string(GetUserQuery):  GetUserQuery,
		string(GetUsersQuery): GetUsersQuery,
		string(SchemaQuery):   SchemaQuery,
		string(TypeQuery):     TypeQuery,
		string(TypenameQuery): TypenameQuery,
	}
	mutationTypes = map[string]MutationType{
		string(CreateUserMutation): CreateUserMutation,
		string(UpdateUserMutation): UpdateUserMutation,
		string(DeleteUserMutation): DeleteUserMutation,
		string(TypenameMutation):   TypenameMutation,
	}
)

// An Operation is a single valid GraphQL operation.  It contains either
// Queries or Mutations, but not both.
type Operation interface {
	Queries() []Query
	Mutations() []Mutation
	IsQuery() bool
	IsMutation() bool
	IsSubscription() bool
}

// A Field is one field from an Operation.
type Field interface {
	Name() string
	Alias() string
	ResponseName() string
	// ArgValue returns the value of argument name, or nil if it was left out or
	// given as null.
	ArgValue(name string) interface{}
	// StringArg returns the value of argument name as a string.  ok is false
	// when the argument was left out or is null.
	StringArg(name string) (value string, ok bool)
	// IDArgValue returns the id argument as a string, whether it was written
	// as a string or an integer.
	IDArgValue() (string, error)
	Type() Type
	// ObjectName is the name of the type this field was selected on.
	ObjectName() string
	SelectionSet() []Field
	Location() x.Location
}

// A Mutation is a field (from the schema's Mutation type) from an Operation
type Mutation interface {
	Field
	MutationType() MutationType
}

// A Query is a field (from the schema's Query type) from an Operation
type Query interface {
	Field
	QueryType() QueryType
}

// A Type is a GraphQL type like: Float, T, T! and [T!]!.  If it's not a list, then
// ListType is nil.  If it's an object type then Name gives the type name.
type Type interface {
	Name() string
	Nullable() bool
	ListType() Type
	String() string
}

type operation struct {
	op       *ast.OperationDefinition
	vars     map[string]interface{}
	inSchema *schema
}

type field struct {
	field *ast.Field
	op    *operation
	// selections caches the expanded selection set
	selections []Field
	expanded   bool
}
type mutation field
type query field

type astType struct {
	typ *ast.Type
}

func (o *operation) IsQuery() bool {
	return o.op.Operation == ast.Query
}

func (o *operation) IsMutation() bool {
	return o.op.Operation == ast.Mutation
}

func (o *operation) IsSubscription() bool {
	return o.op.Operation == ast.Subscription
}

func (o *operation) rootFields() []*ast.Field {
	var root *ast.Definition
	switch {
	case o.IsQuery():
		root = o.inSchema.schema.Query
	case o.IsMutation():
		root = o.inSchema.schema.Mutation
	}
	if root == nil {
		return nil
	}
	return collectFields(o, o.op.SelectionSet, root.Name)
}

func (o *operation) Queries() (qs []Query) {
	if !o.IsQuery() {
		return
	}

	for _, f := range o.rootFields() {
		qs = append(qs, &query{field: f, op: o})
	}
	return
}

func (o *operation) Mutations() (ms []Mutation) {
	if !o.IsMutation() {
		return
	}

	for _, f := range o.rootFields() {
		ms = append(ms, &mutation{field: f, op: o})
	}
	return
}

func responseName(f *ast.Field) string {
	if f.Alias == "" {
		return f.Name
	}
	return f.Alias
}

func (f *field) Name() string {
	return f.field.Name
}

func (f *field) Alias() string {
	return f.field.Alias
}

func (f *field) ResponseName() string {
	return responseName(f.field)
}

func (f *field) ArgValue(name string) interface{} {
	return f.field.ArgumentMap(f.op.vars)[name]
}

func (f *field) StringArg(name string) (string, bool) {
	val := f.ArgValue(name)
	if val == nil {
		return "", false
	}
	s, err := cast.ToStringE(val)
	if err != nil {
		return "", false
	}
	return s, true
}

func (f *field) IDArgValue() (string, error) {
	idArg := f.ArgValue(IDArgName)
	if idArg == nil {
		return "", x.GqlErrorf("ID argument not available on field %s", f.Name()).
			WithLocations(f.Location())
	}

	id, err := cast.ToStringE(idArg)
	if err != nil {
		return "", x.GqlErrorf("ID argument of %s was not able to be parsed", f.Name()).
			WithLocations(f.Location())
	}
	return id, nil
}

func (f *field) Type() Type {
	if f.field.Definition == nil {
		// only __typename can be selected without a definition
		return &astType{typ: ast.NonNullNamedType("String", nil)}
	}
	return &astType{typ: f.field.Definition.Type}
}

func (f *field) ObjectName() string {
	if f.field.ObjectDefinition == nil {
		return ""
	}
	return f.field.ObjectDefinition.Name
}

func (f *field) SelectionSet() []Field {
	if f.expanded {
		return f.selections
	}
	f.expanded = true

	if len(f.field.SelectionSet) == 0 || f.field.Definition == nil {
		return nil
	}
	for _, fld := range collectFields(f.op, f.field.SelectionSet,
		f.field.Definition.Type.Name()) {
		f.selections = append(f.selections, &field{field: fld, op: f.op})
	}
	return f.selections
}

func (f *field) Location() x.Location {
	return x.Location{
		Line:   f.field.Position.Line,
		Column: f.field.Position.Column}
}

func (q *query) Name() string {
	return (*field)(q).Name()
}

func (q *query) Alias() string {
	return (*field)(q).Alias()
}

func (q *query) ResponseName() string {
	return (*field)(q).ResponseName()
}

func (q *query) ArgValue(name string) interface{} {
	return (*field)(q).ArgValue(name)
}

func (q *query) StringArg(name string) (string, bool) {
	return (*field)(q).StringArg(name)
}

func (q *query) IDArgValue() (string, error) {
	return (*field)(q).IDArgValue()
}

func (q *query) Type() Type {
	return (*field)(q).Type()
}

func (q *query) ObjectName() string {
	return (*field)(q).ObjectName()
}

func (q *query) SelectionSet() []Field {
	return (*field)(q).SelectionSet()
}

func (q *query) Location() x.Location {
	return (*field)(q).Location()
}

func (q *query) QueryType() QueryType {
	if qt, ok := queryTypes[q.Name()]; ok {
		return qt
	}
	return NotSupportedQuery
}

func (m *mutation) Name() string {
	return (*field)(m).Name()
}

func (m *mutation) Alias() string {
	return (*field)(m).Alias()
}

func (m *mutation) ResponseName() string {
	return (*field)(m).ResponseName()
}

func (m *mutation) ArgValue(name string) interface{} {
	return (*field)(m).ArgValue(name)
}

func (m *mutation) StringArg(name string) (string, bool) {
	return (*field)(m).StringArg(name)
}

func (m *mutation) IDArgValue() (string, error) {
	return (*field)(m).IDArgValue()
}

func (m *mutation) Type() Type {
	return (*field)(m).Type()
}

func (m *mutation) ObjectName() string {
	return (*field)(m).ObjectName()
}

func (m *mutation) SelectionSet() []Field {
	return (*field)(m).SelectionSet()
}

func (m *mutation) Location() x.Location {
	return (*field)(m).Location()
}

func (m *mutation) MutationType() MutationType {
	if mt, ok := mutationTypes[m.Name()]; ok {
		return mt
	}
	return NotSupportedMutation
}

func (t *astType) Name() string {
	return t.typ.Name()
}

func (t *astType) Nullable() bool {
	return !t.typ.NonNull
}

func (t *astType) ListType() Type {
	if t.typ.Elem == nil {
		return nil
	}
	return &astType{typ: t.typ.Elem}
}

func (t *astType) String() string {
	return t.typ.String()
}

// collectFields flattens sel into the fields it selects on an object of type
// typeName.  Fragment spreads and inline fragments are expanded, fields whose
// @skip/@include directives exclude them are dropped, and fields that share a
// response name are merged into one field whose selection set is the
// concatenation of theirs.
func collectFields(op *operation, sel ast.SelectionSet, typeName string) []*ast.Field {
	var fields []*ast.Field
	seen := make(map[string]*ast.Field)
	visited := make(map[string]bool)

	var collect func(sel ast.SelectionSet)
	collect = func(sel ast.SelectionSet) {
		for _, s := range sel {
			switch s := s.(type) {
			case *ast.Field:
				if !shouldInclude(s.Directives, op.vars) {
					continue
				}
				name := responseName(s)
				if prev, ok := seen[name]; ok {
					if len(s.SelectionSet) > 0 {
						merged := *prev
						merged.SelectionSet = append(append(ast.SelectionSet{},
							prev.SelectionSet...), s.SelectionSet...)
						*prev = merged
					}
					continue
				}
				cp := *s
				seen[name] = &cp
				fields = append(fields, &cp)
			case *ast.InlineFragment:
				if !shouldInclude(s.Directives, op.vars) ||
					!fragmentApplies(s.TypeCondition, typeName) {
					continue
				}
				collect(s.SelectionSet)
			case *ast.FragmentSpread:
				if s.Definition == nil || visited[s.Name] ||
					!shouldInclude(s.Directives, op.vars) ||
					!fragmentApplies(s.Definition.TypeCondition, typeName) {
					continue
				}
				visited[s.Name] = true
				collect(s.Definition.SelectionSet)
			}
		}
	}
	collect(sel)
	return fields
}

// The schema has no interfaces or unions, so a fragment applies only to the
// exact type it names.
func fragmentApplies(typeCondition, typeName string) bool {
	return typeCondition == "" || typeCondition == typeName
}

func shouldInclude(directives ast.DirectiveList, vars map[string]interface{}) bool {
	if d := directives.ForName("skip"); d != nil {
		if cast.ToBool(d.ArgumentMap(vars)["if"]) {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if !cast.ToBool(d.ArgumentMap(vars)["if"]) {
			return false
		}
	}
	return true
}
