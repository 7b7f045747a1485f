/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/usergraph/x"
)

// GraphQL spec on response is here:
// https://graphql.github.io/graphql-spec/June2018/#sec-Response

// GraphQL spec on errors is here:
// https://graphql.github.io/graphql-spec/June2018/#sec-Errors

// Response represents a GraphQL response
type Response struct {
	Errors     x.GqlErrorList
	Data       bytes.Buffer
	Extensions *Extensions
}

// Extensions : GraphQL specifies allowing "extensions" in results, but the
// format is up to the implementation.
type Extensions struct {
	RequestID string `json:"requestID,omitempty"`
}

// ErrorResponse formats an error as a list of GraphQL errors and builds
// a response with that error list and no data.
func ErrorResponse(err error) *Response {
	return &Response{
		Errors: AsGQLErrors(err),
	}
}

// WithError generates GraphQL errors from err and records those in r.
func (r *Response) WithError(err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, AsGQLErrors(err)...)
}

// AddData merges the JSON object p into r's data.  If p is empty, the call has
// no effect.  If r.Data is empty before the call, then r.Data becomes p.
// If r.Data contains data it always looks like {f,g,...}, and
// adding {p} to that results in {f,g,...,p}.
func (r *Response) AddData(p []byte) {
	if r == nil || len(p) == 0 {
		return
	}

	p = bytes.TrimSpace(p)
	if len(p) < 2 {
		return
	}
	members := bytes.TrimSpace(p[1 : len(p)-1])
	if len(members) == 0 {
		if r.Data.Len() == 0 {
			r.Data.WriteString("{}")
		}
		return
	}

	if r.Data.Len() > 2 {
		// The end of the buffer is always the closing `}`
		r.Data.Truncate(r.Data.Len() - 1)
		r.Data.WriteRune(',')
	} else {
		r.Data.Reset()
		r.Data.WriteRune('{')
	}

	r.Data.Write(members)
	r.Data.WriteRune('}')
}

// SetRequestID records id in r's extensions.
func (r *Response) SetRequestID(id string) {
	if r == nil || id == "" {
		return
	}
	if r.Extensions == nil {
		r.Extensions = &Extensions{}
	}
	r.Extensions.RequestID = id
}

// WriteTo writes the GraphQL response as unindented JSON to w
// and returns the number of bytes written and error, if any.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	if r == nil {
		i, err := w.Write([]byte(
			`{ "errors": [ { "message": "Internal error - no response to write." } ], ` +
				` "data": null }`))
		return int64(i), err
	}

	js, err := json.Marshal(struct {
		Errors     x.GqlErrorList  `json:"errors,omitempty"`
		Data       json.RawMessage `json:"data,omitempty"`
		Extensions *Extensions     `json:"extensions,omitempty"`
	}{
		Errors:     r.Errors,
		Data:       r.Data.Bytes(),
		Extensions: r.Extensions,
	})

	if err != nil {
		msg := "Internal error - failed to marshal a valid JSON response"
		glog.Errorf("%+v", errors.Wrap(err, msg))
		js = []byte(`{ "errors": [ { "message": "` + msg + `" } ], "data": null }`)
	}

	i, err := w.Write(js)
	return int64(i), err
}
