/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"github.com/dgraph-io/gqlgen/graphql/introspection"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Introspect answers one of the introspection root fields (__schema, __type or
// __typename).  The result is keyed by field name, in the same shape a
// resolver returns, so it can go through the usual value completion.
func Introspect(q Query) (interface{}, error) {
	qry, ok := q.(*query)
	if !ok {
		return nil, errors.New("couldn't convert query to internal type")
	}
	sch := qry.op.inSchema.schema

	switch q.QueryType() {
	case TypenameQuery:
		return sch.Query.Name, nil
	case SchemaQuery:
		return schemaValue(introspection.WrapSchema(sch), q.SelectionSet()), nil
	case TypeQuery:
		name, _ := q.StringArg("name")
		def := sch.Types[name]
		if def == nil {
			return nil, nil
		}
		return typeValue(introspection.WrapTypeFromDef(sch, def), q.SelectionSet()), nil
	default:
		return nil, errors.Errorf("%s is not an introspection query", q.Name())
	}
}

// object builds the value of an introspection object.  fn is called once per
// distinct field name in sel, with the merged selection sets of every field of
// that name, so aliased selections of the same field all find their data.
func object(sel []Field, fn func(f Field, sub []Field) interface{}) map[string]interface{} {
	obj := make(map[string]interface{}, len(sel))
	for _, f := range sel {
		if _, done := obj[f.Name()]; done || f.Name() == Typename {
			continue
		}
		var sub []Field
		for _, g := range sel {
			if g.Name() == f.Name() {
				sub = append(sub, g.SelectionSet()...)
			}
		}
		obj[f.Name()] = fn(f, sub)
	}
	return obj
}

func optString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func optStringPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func includeDeprecated(f Field) bool {
	return cast.ToBool(f.ArgValue("includeDeprecated"))
}

func schemaValue(s *introspection.Schema, sel []Field) interface{} {
	if s == nil {
		return nil
	}
	return object(sel, func(f Field, sub []Field) interface{} {
		switch f.Name() {
		case "types":
			types := s.Types()
			res := make([]interface{}, 0, len(types))
			for i := range types {
				res = append(res, typeValue(&types[i], sub))
			}
			return res
		case "queryType":
			return typeValue(s.QueryType(), sub)
		case "mutationType":
			return typeValue(s.MutationType(), sub)
		case "subscriptionType":
			return typeValue(s.SubscriptionType(), sub)
		case "directives":
			dirs := s.Directives()
			res := make([]interface{}, 0, len(dirs))
			for i := range dirs {
				res = append(res, directiveValue(&dirs[i], sub))
			}
			return res
		}
		return nil
	})
}

func typeList(types []introspection.Type, sel []Field) interface{} {
	if types == nil {
		return nil
	}
	res := make([]interface{}, 0, len(types))
	for i := range types {
		res = append(res, typeValue(&types[i], sel))
	}
	return res
}

func typeValue(t *introspection.Type, sel []Field) interface{} {
	if t == nil {
		return nil
	}
	return object(sel, func(f Field, sub []Field) interface{} {
		switch f.Name() {
		case "kind":
			return t.Kind()
		case "name":
			return optStringPtr(t.Name())
		case "description":
			return optString(t.Description())
		case "fields":
			fields := t.Fields(includeDeprecated(f))
			if fields == nil {
				return nil
			}
			res := make([]interface{}, 0, len(fields))
			for i := range fields {
				res = append(res, fieldValue(&fields[i], sub))
			}
			return res
		case "interfaces":
			ifaces := t.Interfaces()
			if ifaces == nil && t.Kind() == "OBJECT" {
				// clients expect a list, even an empty one, for objects
				return []interface{}{}
			}
			return typeList(ifaces, sub)
		case "possibleTypes":
			return typeList(t.PossibleTypes(), sub)
		case "enumValues":
			vals := t.EnumValues(includeDeprecated(f))
			if vals == nil {
				return nil
			}
			res := make([]interface{}, 0, len(vals))
			for i := range vals {
				res = append(res, enumValueValue(&vals[i], sub))
			}
			return res
		case "inputFields":
			return inputValueList(t.InputFields(), sub)
		case "ofType":
			return typeValue(t.OfType(), sub)
		}
		return nil
	})
}

func fieldValue(fld *introspection.Field, sel []Field) interface{} {
	return object(sel, func(f Field, sub []Field) interface{} {
		switch f.Name() {
		case "name":
			return fld.Name
		case "description":
			return optString(fld.Description)
		case "args":
			return inputValueList(fld.Args, sub)
		case "type":
			return typeValue(fld.Type, sub)
		case "isDeprecated":
			return fld.IsDeprecated()
		case "deprecationReason":
			return optStringPtr(fld.DeprecationReason())
		}
		return nil
	})
}

// inputValueList is only used for non-null lists, so nil becomes [].
func inputValueList(vals []introspection.InputValue, sel []Field) interface{} {
	res := make([]interface{}, 0, len(vals))
	for i := range vals {
		res = append(res, inputValueValue(&vals[i], sel))
	}
	return res
}

func inputValueValue(iv *introspection.InputValue, sel []Field) interface{} {
	return object(sel, func(f Field, sub []Field) interface{} {
		switch f.Name() {
		case "name":
			return iv.Name
		case "description":
			return optString(iv.Description)
		case "type":
			return typeValue(iv.Type, sub)
		case "defaultValue":
			return optStringPtr(iv.DefaultValue)
		}
		return nil
	})
}

func enumValueValue(ev *introspection.EnumValue, sel []Field) interface{} {
	return object(sel, func(f Field, sub []Field) interface{} {
		switch f.Name() {
		case "name":
			return ev.Name
		case "description":
			return optString(ev.Description)
		case "isDeprecated":
			return ev.IsDeprecated()
		case "deprecationReason":
			return optStringPtr(ev.DeprecationReason())
		}
		return nil
	})
}

func directiveValue(d *introspection.Directive, sel []Field) interface{} {
	return object(sel, func(f Field, sub []Field) interface{} {
		switch f.Name() {
		case "name":
			return d.Name
		case "description":
			return optString(d.Description)
		case "locations":
			locs := make([]interface{}, 0, len(d.Locations))
			for _, l := range d.Locations {
				locs = append(locs, l)
			}
			return locs
		case "args":
			return inputValueList(d.Args, sub)
		case "isRepeatable":
			return false
		}
		return nil
	})
}
