/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"sort"
	"strings"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/dgraph-io/gqlparser/v2/parser"
	"github.com/dgraph-io/gqlparser/v2/validator"

	// registers the query validation rules
	_ "github.com/dgraph-io/gqlparser/v2/validator/rules"
)

// UserSchema is the GraphQL schema served by usergraph.
const UserSchema = `
"""
A user of the system.
"""
type User {
	id: ID!
	name: String!
	email: String!
}

type Query {
	"""
	Finds a user by id.  Returns null if there's no such user.
	"""
	getUser(id: ID!): User

	"""
	Lists every user, in the order they were created.
	"""
	getUsers: [User]
}

type Mutation {
	"""
	Creates a user and returns it with its assigned id.
	"""
	createUser(name: String!, email: String!): User

	"""
	Changes the given fields of a user.  Fields left out keep their value.
	Returns null if there's no such user.
	"""
	updateUser(id: ID!, name: String, email: String): User

	"""
	Deletes a user and reports whether it was found.
	"""
	deleteUser(id: ID!): String
}
`

// Schema represents a valid GraphQL schema
type Schema interface {
	Operation(r *Request) (Operation, error)

	// Queries returns the names of the root query fields, excluding the
	// introspection fields.
	Queries() []string

	// Mutations returns the names of the root mutation fields.
	Mutations() []string
}

type schema struct {
	schema *ast.Schema
}

// FromString parses and validates sdl and returns it as a Schema.
func FromString(sdl string) (Schema, error) {
	// validator.Prelude includes the built-in scalars and the introspection types
	doc, gqlErr := parser.ParseSchemas(validator.Prelude, &ast.Source{Input: sdl})
	if gqlErr != nil {
		return nil, gqlErr
	}

	gqlSchema, gqlErr := validator.ValidateSchemaDocument(doc)
	if gqlErr != nil {
		return nil, gqlErr
	}

	return AsSchema(gqlSchema), nil
}

// AsSchema wraps a github.com/dgraph-io/gqlparser/v2/ast.Schema.
func AsSchema(s *ast.Schema) Schema {
	return &schema{schema: s}
}

func (s *schema) Queries() []string {
	return rootFieldNames(s.schema.Query)
}

func (s *schema) Mutations() []string {
	return rootFieldNames(s.schema.Mutation)
}

func rootFieldNames(def *ast.Definition) []string {
	if def == nil {
		return nil
	}
	var names []string
	for _, f := range def.Fields {
		if strings.HasPrefix(f.Name, "__") {
			continue
		}
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
